package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/llm"
)

type scriptedStream struct {
	events []llm.Event
	i      int
}

func (s *scriptedStream) Recv() (llm.Event, error) {
	if s.i >= len(s.events) {
		return llm.Event{Type: llm.EventDone}, nil
	}
	ev := s.events[s.i]
	s.i++
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

type scriptedStreamClient struct{ stream *scriptedStream }

func (c *scriptedStreamClient) Name() string { return "scripted" }

func (c *scriptedStreamClient) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return c.stream, nil
}

func TestGenerateConcatenatesTextDeltasAndCapturesUsage(t *testing.T) {
	usage := &llm.Usage{InputTokens: 10, OutputTokens: 3}
	client := &scriptedStreamClient{stream: &scriptedStream{events: []llm.Event{
		{Type: llm.EventTextDelta, Text: "hello "},
		{Type: llm.EventTextDelta, Text: "world"},
		{Type: llm.EventUsage, Use: usage},
		{Type: llm.EventDone},
	}}}

	text, gotUsage, err := llm.Generate(context.Background(), client, llm.Request{})
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
	require.Equal(t, usage, gotUsage)
}

type failingStreamClient struct{ err error }

func (c *failingStreamClient) Name() string { return "failing" }

func (c *failingStreamClient) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return nil, c.err
}

func TestGeneratePropagatesStreamConstructionError(t *testing.T) {
	client := &failingStreamClient{err: errors.New("boom")}
	_, _, err := llm.Generate(context.Background(), client, llm.Request{})
	require.Error(t, err)
}
