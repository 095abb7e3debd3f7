// Package pricing counts tokens and prices model usage. Token counting uses a
// model-specific subword tokenizer when one is available and silently falls
// back to a chars/4 approximation otherwise, so an exotic model name can never
// fail a request.
package pricing

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

// Rate is USD per 1000 tokens.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// rateTable maps model name substrings to rates. Order matters: exact
// families first, the generic fallback last. The first matching row wins.
var rateTable = []struct {
	Match string
	Rate  Rate
}{
	{"gpt-4o-mini", Rate{0.00015, 0.0006}},
	{"gpt-4o", Rate{0.0025, 0.01}},
	{"gpt-4-turbo", Rate{0.01, 0.03}},
	{"gpt-4", Rate{0.03, 0.06}},
	{"gpt-3.5", Rate{0.0005, 0.0015}},
	{"o1-mini", Rate{0.003, 0.012}},
	{"o1", Rate{0.015, 0.06}},
	{"claude-3-opus", Rate{0.015, 0.075}},
	{"claude-3-5-sonnet", Rate{0.003, 0.015}},
	{"claude-3-5-haiku", Rate{0.0008, 0.004}},
	{"claude-3-haiku", Rate{0.00025, 0.00125}},
	{"claude", Rate{0.003, 0.015}},
	{"gemini-1.5-flash", Rate{0.000075, 0.0003}},
	{"gemini-1.5-pro", Rate{0.00125, 0.005}},
	{"gemini", Rate{0.0005, 0.0015}},
	{"", Rate{0.002, 0.002}}, // generic fallback
}

// RateFor returns the first rate whose substring matches the model.
func RateFor(model string) Rate {
	for _, row := range rateTable {
		if strings.Contains(model, row.Match) {
			return row.Rate
		}
	}
	return rateTable[len(rateTable)-1].Rate
}

// CountTokens counts subword tokens in text for the given model. Tokenizer
// failures degrade to ceil(len/4) without reporting an error.
func CountTokens(text, model string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return approxTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func approxTokens(text string) int {
	return (len(text) + 3) / 4
}

// Price computes the USD cost of a call.
func Price(model string, inputTokens, outputTokens int) float64 {
	r := RateFor(model)
	return float64(inputTokens)/1000.0*r.InputPer1K + float64(outputTokens)/1000.0*r.OutputPer1K
}

// PromptText flattens a message sequence into the text the rule engine and
// token counter operate on.
func PromptText(messages []openai.ChatCompletionMessage) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// EstimateInputCost prices the input-only payload, used for rule evaluation
// before the upstream call.
func EstimateInputCost(model, prompt string) float64 {
	return Price(model, CountTokens(prompt, model), 0)
}

// Savings is what routing saved: the original model's cost minus the routed
// model's cost for the same token counts. Never negative.
func Savings(originalModel, routedModel string, inputTokens, outputTokens int) float64 {
	s := Price(originalModel, inputTokens, outputTokens) - Price(routedModel, inputTokens, outputTokens)
	if s < 0 {
		return 0
	}
	return s
}
