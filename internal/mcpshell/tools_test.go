package mcpshell

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/config"
	"github.com/rlm-runtime/rlm/internal/llm"
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

func newTestShell(replies []string) *Shell {
	cfg := config.Default()
	cfg.RLM.MaxTurns = 5
	client := &scriptedClient{replies: replies}
	return New(cfg, func(modelName, providerName string) (llm.Client, error) {
		return client, nil
	})
}

func makeRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.Truef(t, ok, "result content is %T, not TextContent", result.Content[0])
	return tc.Text
}

func TestHandleLoad_Success(t *testing.T) {
	sh := newTestShell(nil)
	req := makeRequest("rlm_load", map[string]any{
		"text":    "one\ntwo\nthree\n",
		"adapter": "lisp",
	})

	result, err := sh.handleLoad(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got loadResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	require.Equal(t, 4, got.LineCount)
	require.NotEmpty(t, got.SessionID)
	require.Contains(t, sh.sessions, got.SessionID)
}

func TestHandleLoad_UnknownAdapterIsToolError(t *testing.T) {
	sh := newTestShell(nil)
	req := makeRequest("rlm_load", map[string]any{
		"text":    "one\n",
		"adapter": "nonexistent",
	})

	result, err := sh.handleLoad(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "open session")
}

func TestHandleExecute_UnknownSessionIsToolError(t *testing.T) {
	sh := newTestShell(nil)
	req := makeRequest("rlm_execute", map[string]any{
		"session_id": "sess-nonexistent",
		"query":      "anything",
	})

	result, err := sh.handleExecute(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "unknown session_id")
}

func TestHandleExecuteAndExpandHandle_RoundTrip(t *testing.T) {
	sh := newTestShell([]string{
		"```lisp\n(grep \"ERROR\")\n```",
		"FINAL_VAR(RESULTS)",
	})

	loadReq := makeRequest("rlm_load", map[string]any{
		"text":    "ERROR one\nINFO two\nERROR three\n",
		"adapter": "lisp",
	})
	loadRes, err := sh.handleLoad(context.Background(), loadReq)
	require.NoError(t, err)
	require.False(t, loadRes.IsError)

	var loaded loadResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, loadRes)), &loaded))

	execReq := makeRequest("rlm_execute", map[string]any{
		"session_id": loaded.SessionID,
		"query":      "find the errors",
	})
	execRes, err := sh.handleExecute(context.Background(), execReq)
	require.NoError(t, err)
	require.False(t, execRes.IsError)

	var outcome executeResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, execRes)), &outcome))
	require.Equal(t, "final", outcome.Terminated)
	require.Contains(t, outcome.Bindings, "RESULTS")

	expandReq := makeRequest("rlm_expand_handle", map[string]any{
		"session_id": loaded.SessionID,
		"handle":     outcome.Bindings["RESULTS"],
	})
	expandRes, err := sh.handleExpandHandle(context.Background(), expandReq)
	require.NoError(t, err)
	require.False(t, expandRes.IsError)

	var elems []any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, expandRes)), &elems))
	require.Len(t, elems, 2)
}

func TestHandleExpandHandle_UnknownSessionIsToolError(t *testing.T) {
	sh := newTestShell(nil)
	req := makeRequest("rlm_expand_handle", map[string]any{
		"session_id": "sess-nonexistent",
		"handle":     "$res1",
	})

	result, err := sh.handleExpandHandle(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "unknown session_id")
}
