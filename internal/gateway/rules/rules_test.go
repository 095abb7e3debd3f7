package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/costpilot/gateway/internal/shared/models"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
func at(hour int) time.Time     { return time.Date(2026, 3, 1, hour, 30, 0, 0, time.UTC) }

func rule(id, src, dst string, c models.RuleConditions) models.Rule {
	return models.Rule{ID: id, SourceModel: src, TargetModel: dst, Conditions: c, Enabled: true}
}

func TestNoMatchPassesThrough(t *testing.T) {
	snapshot := []models.Rule{rule("r1", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{})}
	d := Evaluate(snapshot, Request{Model: "claude-3-opus", Now: at(12)})
	if d.Applied {
		t.Fatal("rule applied to a non-matching source model")
	}
	if d.Model != "claude-3-opus" {
		t.Fatalf("model changed to %q", d.Model)
	}
}

func TestFirstMatchWins(t *testing.T) {
	snapshot := []models.Rule{
		rule("r1", "gpt-4", "gpt-4o-mini", models.RuleConditions{}),
		rule("r2", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{}),
	}
	d := Evaluate(snapshot, Request{Model: "gpt-4", Now: at(12)})
	if !d.Applied || d.RuleID != "r1" || d.Model != "gpt-4o-mini" {
		t.Fatalf("decision = %+v, want first rule r1", d)
	}
}

func TestDisabledRuleSkipped(t *testing.T) {
	r := rule("r1", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{})
	r.Enabled = false
	d := Evaluate([]models.Rule{r}, Request{Model: "gpt-4", Now: at(12)})
	if d.Applied {
		t.Fatal("disabled rule applied")
	}
}

func TestMaxPromptCharsBoundaryIsExclusive(t *testing.T) {
	snapshot := []models.Rule{
		rule("r1", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{MaxPromptChars: intp(50)}),
	}

	// Exactly 50 characters does NOT qualify.
	d := Evaluate(snapshot, Request{Model: "gpt-4", Prompt: strings.Repeat("x", 50), Now: at(12)})
	if d.Applied {
		t.Fatal("rule applied at the exact boundary")
	}

	d = Evaluate(snapshot, Request{Model: "gpt-4", Prompt: strings.Repeat("x", 49), Now: at(12)})
	if !d.Applied {
		t.Fatal("rule did not apply below the boundary")
	}
}

func TestRequiredKeywords(t *testing.T) {
	snapshot := []models.Rule{
		rule("r1", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{
			RequiredKeywords: []string{"summarize", "translate"},
		}),
	}

	d := Evaluate(snapshot, Request{Model: "gpt-4", Prompt: "Please SUMMARIZE this text", Now: at(12)})
	if !d.Applied {
		t.Fatal("case-insensitive keyword match failed")
	}

	d = Evaluate(snapshot, Request{Model: "gpt-4", Prompt: "write a poem", Now: at(12)})
	if d.Applied {
		t.Fatal("rule applied without any required keyword")
	}
}

func TestTimeWindows(t *testing.T) {
	tests := []struct {
		window string
		hour   int
		in     bool
	}{
		{models.WindowOffPeak, 23, true},
		{models.WindowOffPeak, 22, true},
		{models.WindowOffPeak, 3, true},
		{models.WindowOffPeak, 5, true},
		{models.WindowOffPeak, 6, false},
		{models.WindowOffPeak, 12, false},
		{models.WindowBusinessHours, 9, true},
		{models.WindowBusinessHours, 17, true},
		{models.WindowBusinessHours, 8, false},
		{models.WindowBusinessHours, 18, false},
		{models.WindowPeak, 17, true}, // overlaps business-hours at 17
		{models.WindowPeak, 22, true}, // overlaps off-peak at 22
		{models.WindowPeak, 19, true},
		{models.WindowPeak, 16, false},
		{models.WindowPeak, 23, false},
	}
	for _, tt := range tests {
		snapshot := []models.Rule{
			rule("r1", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{TimeWindow: tt.window}),
		}
		d := Evaluate(snapshot, Request{Model: "gpt-4", Now: at(tt.hour)})
		if d.Applied != tt.in {
			t.Errorf("window %s at hour %d: applied=%v, want %v", tt.window, tt.hour, d.Applied, tt.in)
		}
	}
}

func TestMaxCostPerRequest(t *testing.T) {
	snapshot := []models.Rule{
		rule("r1", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{MaxCostPerRequest: floatp(0.01)}),
	}

	d := Evaluate(snapshot, Request{Model: "gpt-4", EstimatedCost: 0.005, Now: at(12)})
	if !d.Applied {
		t.Fatal("rule did not apply under the cost ceiling")
	}

	d = Evaluate(snapshot, Request{Model: "gpt-4", EstimatedCost: 0.02, Now: at(12)})
	if d.Applied {
		t.Fatal("rule applied over the cost ceiling")
	}
}

func TestFirstMatchingRuleWithFailingConditionsFallsThrough(t *testing.T) {
	snapshot := []models.Rule{
		rule("r1", "gpt-4", "gpt-4o-mini", models.RuleConditions{MaxPromptChars: intp(5)}),
		rule("r2", "gpt-4", "gpt-3.5-turbo", models.RuleConditions{}),
	}
	d := Evaluate(snapshot, Request{Model: "gpt-4", Prompt: "a long enough prompt", Now: at(12)})
	if !d.Applied || d.RuleID != "r2" {
		t.Fatalf("decision = %+v, want fallthrough to r2", d)
	}
}
