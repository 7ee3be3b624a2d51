// Package rlmsession implements the Session Façade: a thin API —
// load, execute, inspect bindings, expand a handle — wrapping one
// session's document, handle registry, checkpoint manager, and turn
// loop behind a single value. Grounded on the teacher's
// internal/session/store.go Store interface shape (one façade per unit
// of conversational state) and internal/llm/factory.go's
// provider-by-name construction for wiring the LLM client/adapter pair.
package rlmsession

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rlm-runtime/rlm/internal/config"
	"github.com/rlm-runtime/rlm/internal/llm"
	"github.com/rlm-runtime/rlm/internal/rlm/adapter"
	"github.com/rlm-runtime/rlm/internal/rlm/checkpoint"
	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/orchestrator"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/sandbox"
	"github.com/rlm-runtime/rlm/internal/rlm/store"
)

// Session owns one conversation's state: an in-memory SQLite handle
// shared by the line store, handle registry, and checkpoint manager,
// plus the turn loop wired to one LLM client/adapter pair.
type Session struct {
	db       *sql.DB
	doc      *document.LineStore
	reg      *registry.Registry
	ckpt     *checkpoint.Manager
	orch     *orchestrator.Orchestrator
	bindings checkpoint.Bindings
}

// Options configures a new Session. AdapterName overrides
// adapter.AutoDetect(ModelName) when non-empty.
type Options struct {
	Client      llm.Client
	ModelName   string
	AdapterName string
	Sandbox     config.SandboxConfig
	MaxTurns    int
	Logger      *slog.Logger
	OnTurn      func(orchestrator.TurnEvent)
}

// New opens a fresh session backed by its own in-memory database —
// sessions never share state (spec.md §5).
func New(opts Options) (*Session, error) {
	db, err := store.Open()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	name := opts.AdapterName
	if name == "" {
		name, _ = adapter.AutoDetect(opts.ModelName)
	}
	ad, ok := adapter.Get(name)
	if !ok {
		db.Close()
		return nil, fmt.Errorf("open session: unknown adapter %q", name)
	}

	doc := document.New(db)
	reg := registry.New(db)
	ckpt := checkpoint.New(db)

	var sb *sandbox.Sandbox
	if ad.Name() == "js" {
		sb = sandbox.New(doc, sandboxConfigFrom(opts.Sandbox))
	}

	orch := orchestrator.New(doc, reg, ckpt, sb, opts.Client, ad, orchestrator.Options{
		MaxTurns: opts.MaxTurns,
		Model:    opts.ModelName,
		Logger:   opts.Logger,
		OnTurn:   opts.OnTurn,
	})

	return &Session{db: db, doc: doc, reg: reg, ckpt: ckpt, orch: orch, bindings: checkpoint.Bindings{}}, nil
}

func sandboxConfigFrom(c config.SandboxConfig) sandbox.Config {
	return sandbox.Config{
		TimeoutSeconds: c.TurnTimeoutMs / 1000,
		MemoryLimitMB:  c.MemoryLimitMb,
		MaxSubCalls:    c.MaxSubCalls,
	}
}

// Close releases the session's database handle. Checkpoints, handles,
// and the document all die with it — nothing in the core persists
// beyond one process's in-memory store (spec.md §6).
func (s *Session) Close() error {
	return s.db.Close()
}

// Load replaces the session's document content, per spec.md §8:
// loading empty text then non-empty text yields only the non-empty
// document (Load itself enforces this; see document.LineStore.Load).
func (s *Session) Load(ctx context.Context, text string) (int, error) {
	return s.doc.Load(ctx, text)
}

// Execute drives the turn loop for query and records the resulting
// bindings as the session's live binding set.
func (s *Session) Execute(ctx context.Context, query string) (orchestrator.Outcome, error) {
	outcome, err := s.orch.Run(ctx, query)
	if outcome.Bindings != nil {
		s.bindings = outcome.Bindings
	}
	return outcome, err
}

// Bindings returns a copy of the session's current binding set.
func (s *Session) Bindings() checkpoint.Bindings {
	out := make(checkpoint.Bindings, len(s.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}

// ExpandHandle returns the raw elements behind a handle, per
// spec.md §4.2's offset/limit/format options.
func (s *Session) ExpandHandle(ctx context.Context, h registry.Handle, opts registry.ExpandOptions) ([]any, error) {
	return s.reg.Expand(ctx, h, opts)
}

// StubFor returns the compact stub for a handle, for callers that want
// to preview a collection without expanding it.
func (s *Session) StubFor(ctx context.Context, h registry.Handle) (registry.Stub, error) {
	return s.reg.StubFor(ctx, h)
}

// Restore installs the bindings snapshot saved at turn as the session's
// live binding set, per spec.md §4.9 ("reinstalling the RESULTS
// pointer" — RESULTS is just another key in the snapshot map).
func (s *Session) Restore(ctx context.Context, turn int) error {
	bindings, ok, err := s.ckpt.Restore(ctx, turn)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("restore turn %d: no checkpoint saved", turn)
	}
	s.bindings = bindings
	return nil
}

// Checkpoints lists every saved turn number, ascending.
func (s *Session) Checkpoints(ctx context.Context) ([]int, error) {
	return s.ckpt.List(ctx)
}
