package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/llm"
	"github.com/rlm-runtime/rlm/internal/rlm/adapter"
	"github.com/rlm-runtime/rlm/internal/rlm/checkpoint"
	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/orchestrator"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
	"github.com/rlm-runtime/rlm/internal/rlm/store"
)

// fakeStream replays a fixed reply as a single text delta then completes.
type fakeStream struct {
	text string
	sent bool
	err  error
}

func (s *fakeStream) Recv() (llm.Event, error) {
	if s.err != nil {
		return llm.Event{}, s.err
	}
	if !s.sent {
		s.sent = true
		return llm.Event{Type: llm.EventTextDelta, Text: s.text}, nil
	}
	return llm.Event{Type: llm.EventDone}, nil
}

func (s *fakeStream) Close() error { return nil }

// scriptedClient returns replies (or errors) from a fixed queue, one per
// call, recording how many calls it received.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	i := c.calls
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	var text string
	if i < len(c.replies) {
		text = c.replies[i]
	}
	if err != nil {
		return nil, err
	}
	return &fakeStream{text: text}, nil
}

func newTestOrchestrator(t *testing.T, client llm.Client, maxTurns int) (*orchestrator.Orchestrator, *document.LineStore, *registry.Registry) {
	t.Helper()
	db, err := store.Open()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	doc := document.New(db)
	_, err = doc.Load(context.Background(), "ERROR one\nINFO two\nERROR three\n")
	require.NoError(t, err)

	reg := registry.New(db)
	ckpt := checkpoint.New(db)
	ad, ok := adapter.Get("lisp")
	require.True(t, ok)

	o := orchestrator.New(doc, reg, ckpt, nil, client, ad, orchestrator.Options{MaxTurns: maxTurns})
	return o, doc, reg
}

func TestRunTerminatesOnDelimitedFinalAnswer(t *testing.T) {
	client := &scriptedClient{replies: []string{"<<<FINAL>>>42<<<END>>>"}}
	o, _, _ := newTestOrchestrator(t, client, 5)

	outcome, err := o.Run(context.Background(), "what is the answer?")
	require.NoError(t, err)
	require.Equal(t, "final", outcome.Terminated)
	require.Equal(t, "42", outcome.Text)
	require.Equal(t, 1, outcome.TurnsUsed)
	require.Equal(t, 1, client.calls)
}

func TestRunExecutesCodeAndResolvesFinalVar(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```lisp\n(grep \"ERROR\")\n```",
		"FINAL_VAR(RESULTS)",
	}}
	o, _, _ := newTestOrchestrator(t, client, 5)

	outcome, err := o.Run(context.Background(), "find the errors")
	require.NoError(t, err)
	require.Equal(t, "final", outcome.Terminated)
	require.Equal(t, 2, outcome.TurnsUsed)
	require.Contains(t, outcome.Text, "ERROR one")
	require.Contains(t, outcome.Text, "ERROR three")
	require.Contains(t, outcome.Bindings, "RESULTS")
	require.Contains(t, outcome.Bindings, "_1")
}

func TestRunStopsAtMaxTurnsWhenNoFinalAnswerArrives(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"just thinking out loud, no code yet",
		"still thinking",
		"and more thinking",
	}}
	o, _, _ := newTestOrchestrator(t, client, 3)

	outcome, err := o.Run(context.Background(), "find the errors")
	require.NoError(t, err)
	require.Equal(t, "max-turns", outcome.Terminated)
	require.Equal(t, 3, outcome.TurnsUsed)
	require.Equal(t, 3, client.calls)
}

func TestRunForcesNoProgressOnThreeIdenticalFragments(t *testing.T) {
	same := "```lisp\n(grep \"ERROR\")\n```"
	client := &scriptedClient{replies: []string{same, same, same}}
	o, _, _ := newTestOrchestrator(t, client, 10)

	outcome, err := o.Run(context.Background(), "find the errors")
	require.Error(t, err)
	require.True(t, errors.Is(err, rlmerr.ErrNoProgress))
	require.Equal(t, "no-progress", outcome.Terminated)
	require.Equal(t, 3, outcome.TurnsUsed)
}

func TestRunRetriesTransportErrorOnceThenSucceeds(t *testing.T) {
	client := &scriptedClient{
		replies: []string{"", "<<<FINAL>>>ok<<<END>>>"},
		errs:    []error{errors.New("connection reset")},
	}
	o, _, _ := newTestOrchestrator(t, client, 5)

	outcome, err := o.Run(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, "final", outcome.Terminated)
	require.Equal(t, 1, outcome.TurnsUsed)
	require.Equal(t, 2, client.calls)
}

func TestRunPropagatesTransportErrorAfterRetryFails(t *testing.T) {
	client := &scriptedClient{
		errs: []error{errors.New("connection reset"), errors.New("connection reset")},
	}
	o, _, _ := newTestOrchestrator(t, client, 5)

	_, err := o.Run(context.Background(), "anything")
	require.Error(t, err)
	require.True(t, errors.Is(err, rlmerr.ErrTransportError))
	require.Equal(t, 2, client.calls)
}

func TestRunEnqueuesErrorFeedbackAndContinuesOnExecutorFailure(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```lisp\n(match unbound \"x\" 0)\n```",
		"<<<FINAL>>>recovered<<<END>>>",
	}}
	o, _, _ := newTestOrchestrator(t, client, 5)

	outcome, err := o.Run(context.Background(), "try something broken first")
	require.NoError(t, err)
	require.Equal(t, "final", outcome.Terminated)
	require.Equal(t, 2, outcome.TurnsUsed)
	require.Equal(t, 2, client.calls)
}
