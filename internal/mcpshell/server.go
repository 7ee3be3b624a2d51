// Package mcpshell exposes the Session Façade (internal/rlm/rlmsession)
// as an MCP stdio server: rlm_load, rlm_execute, rlm_expand_handle.
// Pure plumbing — it carries none of the turn loop's own invariants,
// only argument binding and JSON result rendering. Grounded on
// internal/mcpserver/server.go and tools.go (the only retrieved example
// that runs mcp-go as a server rather than a client): the same
// server.NewMCPServer + server.ServerTool{Tool,Handler} + NewStdioServer
// wiring, and tools.go's BindArguments/resultJSON/NewToolResultError
// handler shape.
package mcpshell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rlm-runtime/rlm/internal/config"
	"github.com/rlm-runtime/rlm/internal/llm"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmsession"
)

// version is reported to MCP clients during initialization.
const version = "0.1.0"

// Shell owns every rlmsession.Session it has created, keyed by an
// opaque id the client must pass back into rlm_execute/rlm_expand_handle.
// A new session is minted by each rlm_load call — one document per
// session, per spec.md §3's LineStore lifecycle.
type Shell struct {
	cfg       *config.Config
	newClient func(modelName, providerName string) (llm.Client, error)
	sessions  map[string]*rlmsession.Session
	nextID    int
}

// New builds a Shell. newClient constructs the LLM client a session's
// turn loop will call; it is injected rather than hardwired to
// llm.NewClientByName so tests can supply a fake.
func New(cfg *config.Config, newClient func(modelName, providerName string) (llm.Client, error)) *Shell {
	return &Shell{cfg: cfg, newClient: newClient, sessions: map[string]*rlmsession.Session{}}
}

// Run starts the MCP stdio server. It blocks until ctx is cancelled or
// stdin is closed.
func (sh *Shell) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	mcpServer := server.NewMCPServer("rlm-runtime", version, server.WithToolCapabilities(true))
	mcpServer.AddTools(
		server.ServerTool{Tool: loadTool(), Handler: sh.handleLoad},
		server.ServerTool{Tool: executeTool(), Handler: sh.handleExecute},
		server.ServerTool{Tool: expandHandleTool(), Handler: sh.handleExpandHandle},
	)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[rlm-mcp] ", log.LstdFlags))
	return stdio.Listen(ctx, stdin, stdout)
}

func loadTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"rlm_load",
		"Start a new RLM session over a document of text, returning a session id and line count.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "Document text to load"},
				"model": {"type": "string", "description": "Model name for this session's turn loop"},
				"provider": {"type": "string", "description": "LLM provider name (anthropic, openai, gemini)"},
				"adapter": {"type": "string", "description": "Adapter override (lisp or js); auto-detected from model if omitted"}
			},
			"required": ["text"]
		}`),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"rlm_execute",
		"Run the turn loop for a query against a loaded session, returning the final answer or a max-turns notice.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id": {"type": "string", "description": "Session id returned by rlm_load"},
				"query": {"type": "string", "description": "Natural-language query to answer over the loaded document"}
			},
			"required": ["session_id", "query"]
		}`),
	)
}

func expandHandleTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"rlm_expand_handle",
		"Expand a $res<N> handle returned by rlm_execute into its stored elements.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id": {"type": "string", "description": "Session id returned by rlm_load"},
				"handle": {"type": "string", "description": "Handle to expand, e.g. $res1"},
				"offset": {"type": "integer", "description": "Skip this many elements before returning"},
				"limit": {"type": "integer", "description": "Return at most this many elements (0 = no limit)"}
			},
			"required": ["session_id", "handle"]
		}`),
	)
}

type loadArgs struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Adapter  string `json:"adapter"`
}

type loadResult struct {
	SessionID string `json:"session_id"`
	LineCount int    `json:"line_count"`
}

func (sh *Shell) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args loadArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	providerName := args.Provider
	if providerName == "" {
		providerName = sh.cfg.LLM.Provider
	}
	client, err := sh.newClient(args.Model, providerName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build llm client: %v", err)), nil
	}

	sess, err := rlmsession.New(rlmsession.Options{
		Client:      client,
		ModelName:   args.Model,
		AdapterName: args.Adapter,
		Sandbox:     sh.cfg.Sandbox,
		MaxTurns:    sh.cfg.RLM.MaxTurns,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open session: %v", err)), nil
	}

	lineCount, err := sess.Load(ctx, args.Text)
	if err != nil {
		sess.Close()
		return mcp.NewToolResultError(fmt.Sprintf("load document: %v", err)), nil
	}

	id := sh.register(sess)
	return resultJSON(loadResult{SessionID: id, LineCount: lineCount})
}

type executeArgs struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type executeResult struct {
	Terminated string            `json:"terminated"`
	Text       string            `json:"text"`
	TurnsUsed  int               `json:"turns_used"`
	Bindings   map[string]string `json:"bindings"`
}

func (sh *Shell) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args executeArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	sess, ok := sh.sessions[args.SessionID]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown session_id %q", args.SessionID)), nil
	}

	outcome, err := sess.Execute(ctx, args.Query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execute: %v", err)), nil
	}

	bindings := make(map[string]string, len(outcome.Bindings))
	for name, h := range outcome.Bindings {
		bindings[name] = string(h)
	}
	return resultJSON(executeResult{
		Terminated: outcome.Terminated,
		Text:       outcome.Text,
		TurnsUsed:  outcome.TurnsUsed,
		Bindings:   bindings,
	})
}

type expandArgs struct {
	SessionID string `json:"session_id"`
	Handle    string `json:"handle"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
}

func (sh *Shell) handleExpandHandle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args expandArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	sess, ok := sh.sessions[args.SessionID]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown session_id %q", args.SessionID)), nil
	}

	elems, err := sess.ExpandHandle(ctx, registry.Handle(args.Handle), registry.ExpandOptions{
		Offset: args.Offset,
		Limit:  args.Limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("expand handle: %v", err)), nil
	}
	return resultJSON(elems)
}

func (sh *Shell) register(sess *rlmsession.Session) string {
	sh.nextID++
	id := fmt.Sprintf("sess-%d", sh.nextID)
	sh.sessions[id] = sess
	return id
}

func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
