package pricing

import (
	"math"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestCountTokensFallback(t *testing.T) {
	// An unrecognized model has no tokenizer; counting must degrade to
	// ceil(len/4) without an error.
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 50), 13},
	}
	for _, tt := range tests {
		if got := CountTokens(tt.text, "claude-3-5-haiku-20241022"); got != tt.want {
			t.Errorf("CountTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestRateForOrder(t *testing.T) {
	// gpt-4o-mini must match its own row, not the gpt-4o or gpt-4 rows.
	if r := RateFor("gpt-4o-mini"); r.InputPer1K != 0.00015 {
		t.Fatalf("gpt-4o-mini input rate = %v", r.InputPer1K)
	}
	if r := RateFor("gpt-4o-2024-08-06"); r.InputPer1K != 0.0025 {
		t.Fatalf("gpt-4o dated variant input rate = %v", r.InputPer1K)
	}
	// Dated claude names should hit their family row before the generic one.
	if r := RateFor("claude-3-5-haiku-20241022"); r.InputPer1K != 0.0008 {
		t.Fatalf("claude-3-5-haiku input rate = %v", r.InputPer1K)
	}
	// Unknown models price at the generic fallback.
	if r := RateFor("totally-unknown"); r.InputPer1K != 0.002 || r.OutputPer1K != 0.002 {
		t.Fatalf("fallback rate = %+v", r)
	}
}

func TestPrice(t *testing.T) {
	// gpt-4: 0.03 in / 0.06 out per 1k.
	got := Price("gpt-4", 1000, 500)
	want := 0.03 + 0.5*0.06
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Price = %v, want %v", got, want)
	}
}

func TestSavings(t *testing.T) {
	s := Savings("gpt-4", "gpt-3.5-turbo", 1000, 1000)
	want := (0.03 + 0.06) - (0.0005 + 0.0015)
	if math.Abs(s-want) > 1e-9 {
		t.Fatalf("Savings = %v, want %v", s, want)
	}

	// Routing to a pricier model never reports negative savings.
	if s := Savings("gpt-3.5-turbo", "gpt-4", 1000, 1000); s != 0 {
		t.Fatalf("negative savings surfaced: %v", s)
	}
}

func TestPromptText(t *testing.T) {
	msgs := []openai.ChatCompletionMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	}
	if got := PromptText(msgs); got != "be brief\nhello" {
		t.Fatalf("PromptText = %q", got)
	}
}
