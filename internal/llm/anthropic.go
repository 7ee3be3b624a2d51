package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a client for the given model. apiKey falls
// back to ANTHROPIC_API_KEY when empty, matching the teacher's cascade.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else if env := os.Getenv("ANTHROPIC_API_KEY"); env != "" {
		opts = append(opts, option.WithAPIKey(env))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...), model: model}
}

func (c *AnthropicClient) Name() string {
	return fmt.Sprintf("anthropic(%s)", c.model)
}

func (c *AnthropicClient) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		model := req.Model
		if model == "" {
			model = c.model
		}

		var system []anthropic.TextBlockParam
		var messages []anthropic.MessageParam
		for _, m := range req.Messages {
			switch m.Role {
			case RoleSystem:
				system = append(system, anthropic.TextBlockParam{Text: m.Text})
			case RoleUser:
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
			case RoleAssistant:
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
			}
		}

		maxTokens := int64(req.MaxOutputTokens)
		if maxTokens <= 0 {
			maxTokens = 4096
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			Messages:  messages,
			System:    system,
		}

		stream := c.client.Messages.NewStreaming(ctx, params)
		var usage Usage
		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
					events <- Event{Type: EventTextDelta, Text: text.Text}
				}
			}
			if delta, ok := event.AsAny().(anthropic.MessageDeltaEvent); ok && delta.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(delta.Usage.OutputTokens)
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("anthropic stream: %w", err)
		}
		events <- Event{Type: EventUsage, Use: &usage}
		return nil
	}), nil
}
