package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiClient implements Client using the Gemini API.
type GeminiClient struct {
	apiKey string
	model  string
}

// NewGeminiClient creates a client for the given model. apiKey falls back
// to GEMINI_API_KEY when empty.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &GeminiClient{apiKey: apiKey, model: model}
}

func (c *GeminiClient) Name() string {
	return fmt.Sprintf("gemini(%s)", c.model)
}

func (c *GeminiClient) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		model := req.Model
		if model == "" {
			model = c.model
		}

		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}

		var contents []*genai.Content
		var config genai.GenerateContentConfig
		for _, m := range req.Messages {
			switch m.Role {
			case RoleSystem:
				config.SystemInstruction = genai.NewContentFromText(m.Text, genai.RoleUser)
			case RoleUser:
				contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
			case RoleAssistant:
				contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleModel))
			}
		}
		if req.MaxOutputTokens > 0 {
			config.MaxOutputTokens = int32(req.MaxOutputTokens)
		}

		var usage Usage
		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, &config) {
			if err != nil {
				return fmt.Errorf("gemini stream: %w", err)
			}
			if text := resp.Text(); text != "" {
				events <- Event{Type: EventTextDelta, Text: text}
			}
			if resp.UsageMetadata != nil {
				usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
				usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
		}
		events <- Event{Type: EventUsage, Use: &usage}
		return nil
	}), nil
}
