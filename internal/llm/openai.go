package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client using the Chat Completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given model. apiKey falls back
// to OPENAI_API_KEY when empty.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else if env := os.Getenv("OPENAI_API_KEY"); env != "" {
		opts = append(opts, option.WithAPIKey(env))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Name() string {
	return fmt.Sprintf("openai(%s)", c.model)
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		model := req.Model
		if model == "" {
			model = c.model
		}

		var messages []openai.ChatCompletionMessageParamUnion
		for _, m := range req.Messages {
			switch m.Role {
			case RoleSystem:
				messages = append(messages, openai.SystemMessage(m.Text))
			case RoleUser:
				messages = append(messages, openai.UserMessage(m.Text))
			case RoleAssistant:
				messages = append(messages, openai.AssistantMessage(m.Text))
			}
		}

		params := openai.ChatCompletionNewParams{
			Model:    model,
			Messages: messages,
		}
		if req.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		var usage Usage
		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					events <- Event{Type: EventTextDelta, Text: choice.Delta.Content}
				}
			}
			if chunk.Usage.CompletionTokens > 0 {
				usage.InputTokens = int(chunk.Usage.PromptTokens)
				usage.OutputTokens = int(chunk.Usage.CompletionTokens)
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai stream: %w", err)
		}
		events <- Event{Type: EventUsage, Use: &usage}
		return nil
	}), nil
}
