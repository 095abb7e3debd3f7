package forward

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// Each provider returns usage and output text in its own response shape. A
// small strategy table keeps the differences out of the forwarding loop.
type responseParser func(body []byte) (inputTokens, outputTokens int, outputText string, ok bool)

var parsers = map[string]responseParser{
	"openai":    parseOpenAI,
	"anthropic": parseAnthropic,
	"google":    parseGemini,
}

// parseResponse extracts token usage and output text from a raw provider
// body. Unknown providers and malformed bodies yield zeros; callers estimate
// instead.
func parseResponse(provider string, body []byte) (int, int, string) {
	p, ok := parsers[provider]
	if !ok {
		return 0, 0, ""
	}
	in, out, text, ok := p(body)
	if !ok {
		return 0, 0, ""
	}
	return in, out, text
}

func parseOpenAI(body []byte) (int, int, string, bool) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, "", false
	}
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return resp.Usage.PromptTokens, resp.Usage.CompletionTokens, text, true
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseAnthropic(body []byte) (int, int, string, bool) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, "", false
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return resp.Usage.InputTokens, resp.Usage.OutputTokens, text, true
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func parseGemini(body []byte) (int, int, string, bool) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, "", false
	}
	var text string
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			text += part.Text
		}
	}
	return resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount, text, true
}
