package rlmsession_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/config"
	"github.com/rlm-runtime/rlm/internal/llm"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmsession"
)

type fakeStream struct {
	text string
	sent bool
}

func (s *fakeStream) Recv() (llm.Event, error) {
	if !s.sent {
		s.sent = true
		return llm.Event{Type: llm.EventTextDelta, Text: s.text}, nil
	}
	return llm.Event{Type: llm.EventDone}, nil
}

func (s *fakeStream) Close() error { return nil }

type scriptedClient struct {
	replies []string
	calls   int
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	i := c.calls
	c.calls++
	var text string
	if i < len(c.replies) {
		text = c.replies[i]
	}
	return &fakeStream{text: text}, nil
}

func newTestSession(t *testing.T, client llm.Client, adapterName string) *rlmsession.Session {
	t.Helper()
	sess, err := rlmsession.New(rlmsession.Options{
		Client:      client,
		ModelName:   "test-model",
		AdapterName: adapterName,
		Sandbox:     config.SandboxConfig{MaxSubCalls: 10, TurnTimeoutMs: 5000, MemoryLimitMb: 64},
		MaxTurns:    5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestLoadReturnsLineCount(t *testing.T) {
	sess := newTestSession(t, &scriptedClient{}, "lisp")
	n, err := sess.Load(context.Background(), "one\ntwo\nthree\n")
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestExecuteRunsTurnLoopAndRecordsBindings(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```lisp\n(grep \"ERROR\")\n```",
		"FINAL_VAR(RESULTS)",
	}}
	sess := newTestSession(t, client, "lisp")
	_, err := sess.Load(context.Background(), "ERROR one\nINFO two\nERROR three\n")
	require.NoError(t, err)

	outcome, err := sess.Execute(context.Background(), "find the errors")
	require.NoError(t, err)
	require.Equal(t, "final", outcome.Terminated)

	bindings := sess.Bindings()
	require.Contains(t, bindings, "RESULTS")

	stub, err := sess.StubFor(context.Background(), bindings["RESULTS"])
	require.NoError(t, err)
	require.Equal(t, 2, stub.Count)
}

func TestExpandHandleReturnsStoredElements(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```lisp\n(grep \"ERROR\")\n```",
		"FINAL_VAR(RESULTS)",
	}}
	sess := newTestSession(t, client, "lisp")
	_, err := sess.Load(context.Background(), "ERROR one\nINFO two\nERROR three\n")
	require.NoError(t, err)

	outcome, err := sess.Execute(context.Background(), "find the errors")
	require.NoError(t, err)

	elems, err := sess.ExpandHandle(context.Background(), outcome.Bindings["RESULTS"], registry.ExpandOptions{})
	require.NoError(t, err)
	require.Len(t, elems, 2)
}

func TestRestoreInstallsCheckpointedBindings(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```lisp\n(grep \"ERROR\")\n```",
		"```lisp\n(filter RESULTS (lambda x (match x \"three\" 0)))\n```",
		"FINAL_VAR(RESULTS)",
	}}
	sess := newTestSession(t, client, "lisp")
	_, err := sess.Load(context.Background(), "ERROR one\nINFO two\nERROR three\n")
	require.NoError(t, err)

	_, err = sess.Execute(context.Background(), "find and narrow the errors")
	require.NoError(t, err)

	turns, err := sess.Checkpoints(context.Background())
	require.NoError(t, err)
	require.Contains(t, turns, 1)

	require.NoError(t, sess.Restore(context.Background(), 1))
	bindings := sess.Bindings()
	stub, err := sess.StubFor(context.Background(), bindings["RESULTS"])
	require.NoError(t, err)
	require.Equal(t, 2, stub.Count)
}

func TestNewRejectsUnknownAdapter(t *testing.T) {
	_, err := rlmsession.New(rlmsession.Options{Client: &scriptedClient{}, AdapterName: "nonexistent"})
	require.Error(t, err)
}
