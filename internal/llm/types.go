// Package llm is the thin transport shell the orchestrator consumes: a
// single-shot "send a prompt, stream text back" client over whichever
// provider the config selects. It carries none of the turn-loop's
// retry/termination/feedback logic — that lives in internal/rlm/orchestrator.
package llm

import "context"

// Role identifies a message role in the conversation sent to the model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role Role
	Text string
}

// Request represents a single model completion request.
type Request struct {
	Model           string
	Messages        []Message
	MaxOutputTokens int
	Temperature     float32
	Debug           bool
}

// EventType identifies the kind of a streamed Event.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventUsage     EventType = "usage"
	EventDone      EventType = "done"
)

// Usage reports token accounting for a completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Event is one item yielded by a Stream.
type Event struct {
	Type EventType
	Text string
	Use  *Usage
}

// Stream yields Events until a terminal EventDone or an error from Recv.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Client is the minimal provider surface the orchestrator needs.
type Client interface {
	// Name returns a human-readable identifier for logging.
	Name() string
	// Stream sends req and streams the model's text response.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Generate drains a Stream into a single string and final Usage. Most
// callers that don't need incremental output (e.g. the orchestrator's
// turn loop, which only needs the complete response text) use this
// instead of consuming Stream directly.
func Generate(ctx context.Context, c Client, req Request) (string, *Usage, error) {
	stream, err := c.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var text string
	var usage *Usage
	for {
		ev, err := stream.Recv()
		if err != nil {
			return "", nil, err
		}
		switch ev.Type {
		case EventTextDelta:
			text += ev.Text
		case EventUsage:
			usage = ev.Use
		case EventDone:
			return text, usage, nil
		}
	}
}
