// Package orchestrator implements the Turn Loop (spec.md §4.8): it
// drives one adapter, one LLM client, and one executor (DSL evaluator
// or JS sandbox, picked by the adapter's name) through bounded,
// serialised turns with repetition breaking and feedback-driven retry.
// Grounded directly on the teacher's internal/llm/engine.go Engine (turn
// counter, per-turn callback shape) and internal/llm/retry.go's
// RetryProvider (the transport-error-retried-once rule).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rlm-runtime/rlm/internal/llm"
	"github.com/rlm-runtime/rlm/internal/rlm/adapter"
	"github.com/rlm-runtime/rlm/internal/rlm/checkpoint"
	"github.com/rlm-runtime/rlm/internal/rlm/dsleval"
	"github.com/rlm-runtime/rlm/internal/rlm/dslterm"
	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
	"github.com/rlm-runtime/rlm/internal/rlm/sandbox"
)

// maxConsecutiveRepeats is the number of times the same code fragment
// may repeat before the loop forces a no-progress termination. Spec.md
// §8's boundary case names "three identical fragments in a row" — the
// original submission plus two repeats.
const maxConsecutiveRepeats = 2

// Options configures one orchestrator run. Zero values fall back to the
// documented defaults in spec.md §6.
type Options struct {
	MaxTurns int
	Model    string
	Logger   *slog.Logger
	// OnTurn, if set, is called synchronously after each turn produces a
	// TurnEvent. It exists so an outer shell (the CLI's --verbose live
	// view) can observe progress without the turn loop itself knowing
	// anything about terminals or rendering.
	OnTurn func(TurnEvent)
}

// TurnEvent reports one turn's outcome to an observer, per
// SPEC_FULL.md §6.2's verbose live view.
type TurnEvent struct {
	Turn        int
	Fragment    string
	Feedback    string
	ResultCount int
	Err         error
}

func (o *Orchestrator) emit(evt TurnEvent) {
	if o.opts.OnTurn != nil {
		o.opts.OnTurn(evt)
	}
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Outcome is the turn loop's terminal result (spec.md §4.8: "the final
// string, a resolved variable value, or a capped max-turns message").
type Outcome struct {
	// Terminated names why the loop stopped: "final", "max-turns",
	// "no-progress", or "cancelled" (the context ended before a turn).
	Terminated string
	Text       string
	TurnsUsed  int
	Bindings   checkpoint.Bindings
}

// Orchestrator wires one session's document, handle registry, and
// checkpoint manager to an LLM client and adapter for the turn loop.
type Orchestrator struct {
	doc     *document.LineStore
	reg     *registry.Registry
	ckpt    *checkpoint.Manager
	sandbox *sandbox.Sandbox
	client  llm.Client
	adapter adapter.Adapter
	opts    Options
}

// New builds an Orchestrator. sb is only used when adapter.Name() == "js";
// a nil sb is fine for lisp-only sessions.
func New(doc *document.LineStore, reg *registry.Registry, ckpt *checkpoint.Manager, sb *sandbox.Sandbox, client llm.Client, ad adapter.Adapter, opts Options) *Orchestrator {
	return &Orchestrator{
		doc:     doc,
		reg:     reg,
		ckpt:    ckpt,
		sandbox: sb,
		client:  client,
		adapter: ad,
		opts:    opts.withDefaults(),
	}
}

// Run drives the turn loop for query until a final answer, a forced
// no-progress termination, or maxTurns is reached. Effects within a
// turn are totally ordered per spec.md §5: prompt build → LLM reply →
// extract → validate → execute → update bindings → feedback.
func (o *Orchestrator) Run(ctx context.Context, query string) (Outcome, error) {
	log := o.opts.Logger
	bindings := checkpoint.Bindings{}
	feedback := ""
	prevHash := ""
	repeats := 0
	lastResultCount := -1

	for turn := 1; turn <= o.opts.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Terminated: "cancelled", Bindings: bindings, TurnsUsed: turn - 1}, err
		}

		prompt, err := o.buildPrompt(ctx, query, feedback, bindings)
		if err != nil {
			return Outcome{}, fmt.Errorf("assemble prompt: %w", err)
		}

		reply, err := o.invokeLLM(ctx, prompt)
		if err != nil {
			return Outcome{}, err
		}

		if fa, ok := o.adapter.ExtractFinalAnswer(reply); ok {
			text, err := o.resolveFinal(ctx, fa, bindings)
			if err != nil {
				return Outcome{}, err
			}
			log.Info("turn loop finished", "turn", turn, "terminated", "final")
			o.emit(TurnEvent{Turn: turn, ResultCount: -1})
			return Outcome{Terminated: "final", Text: text, TurnsUsed: turn, Bindings: bindings}, nil
		}

		code, ok := o.adapter.ExtractCode(reply)
		if !ok {
			// Counts as a turn (DESIGN.md Open Question decision 1),
			// recommended by spec.md §4.8 step 4 for determinism.
			feedback = o.adapter.GetNoCodeFeedback()
			o.emit(TurnEvent{Turn: turn, Feedback: feedback})
			continue
		}

		hash := hashCode(code)
		if hash == prevHash {
			repeats++
		} else {
			repeats = 0
		}
		prevHash = hash
		if repeats >= maxConsecutiveRepeats {
			log.Warn("turn loop forced termination", "turn", turn, "reason", "no-progress")
			err := rlmerr.NoProgressf("same code fragment submitted %d turns in a row", maxConsecutiveRepeats+1)
			o.emit(TurnEvent{Turn: turn, Fragment: code, Err: err})
			return Outcome{Terminated: "no-progress", Bindings: bindings, TurnsUsed: turn}, err
		}
		if repeats == 1 {
			feedback = o.adapter.GetRepeatedCodeFeedback(lastResultCount)
			o.emit(TurnEvent{Turn: turn, Fragment: code, Feedback: feedback})
			continue
		}

		value, err := o.execute(ctx, code, bindings)
		if err != nil {
			feedback = o.adapter.GetErrorFeedback(err, code)
			o.emit(TurnEvent{Turn: turn, Fragment: code, Feedback: feedback, Err: err})
			continue
		}

		count, err := o.applyResult(ctx, turn, value, bindings)
		if err != nil {
			return Outcome{}, fmt.Errorf("apply turn %d result: %w", turn, err)
		}
		if o.ckpt != nil {
			if err := o.ckpt.Save(ctx, turn, bindings); err != nil {
				return Outcome{}, fmt.Errorf("checkpoint turn %d: %w", turn, err)
			}
		}
		feedback = o.adapter.GetSuccessFeedback(count, lastResultCount)
		lastResultCount = count
		o.emit(TurnEvent{Turn: turn, Fragment: code, Feedback: feedback, ResultCount: count})
	}

	log.Warn("turn loop exhausted max turns", "maxTurns", o.opts.MaxTurns)
	o.emit(TurnEvent{Turn: o.opts.MaxTurns, ResultCount: -1})
	return Outcome{
		Terminated: "max-turns",
		Text:       fmt.Sprintf("Max turns (%d) reached without a final answer.", o.opts.MaxTurns),
		TurnsUsed:  o.opts.MaxTurns,
		Bindings:   bindings,
	}, nil
}

// invokeLLM sends one request; on transport error it is retried exactly
// once before propagating, per spec.md §7's "transport-error: retried
// once, then fatal" and the teacher's internal/llm/retry.go shape.
func (o *Orchestrator) invokeLLM(ctx context.Context, prompt string) (string, error) {
	req := llm.Request{
		Model:    o.opts.Model,
		Messages: []llm.Message{{Role: llm.RoleUser, Text: prompt}},
	}
	text, _, err := llm.Generate(ctx, o.client, req)
	if err == nil {
		return text, nil
	}
	o.opts.Logger.Warn("llm transport error, retrying once", "error", err)
	text, _, err = llm.Generate(ctx, o.client, req)
	if err != nil {
		return "", rlmerr.TransportErrorf("llm request failed after one retry: %s", err)
	}
	return text, nil
}

// buildPrompt assembles system prompt + query + pending feedback + a
// rendering of the current bindings, per spec.md §4.8 step 1.
func (o *Orchestrator) buildPrompt(ctx context.Context, query, feedback string, bindings checkpoint.Bindings) (string, error) {
	count, err := o.doc.GetLineCount(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(o.adapter.BuildSystemPrompt(count, nil, nil))
	b.WriteString("\nQuery: ")
	b.WriteString(query)
	b.WriteString("\n")

	if len(bindings) > 0 {
		rendered, err := o.renderBindings(ctx, bindings)
		if err != nil {
			return "", err
		}
		b.WriteString("\nCurrent bindings:\n")
		b.WriteString(rendered)
	}
	if feedback != "" {
		b.WriteString("\nFeedback from the previous turn: ")
		b.WriteString(feedback)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (o *Orchestrator) renderBindings(ctx context.Context, bindings checkpoint.Bindings) (string, error) {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sortStrings(names)

	var b strings.Builder
	for _, name := range names {
		stub, err := o.reg.StubFor(ctx, bindings[name])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  %s -> %s (count=%d) %s\n", name, stub.TypeDescriptor, stub.Count, stub.Preview)
	}
	return b.String(), nil
}

// execute validates and runs code through the executor the active
// adapter implies: the js adapter's fragments run in the sandbox, every
// other adapter's fragments are read as an LCTerm and tree-walked by the
// DSL evaluator. Both paths return the raw evaluated value; wrapping
// collection results in a handle is applyResult's job, not the
// executor's, per spec.md §4.2 keeping the registry orchestrator-owned.
func (o *Orchestrator) execute(ctx context.Context, code string, bindings checkpoint.Bindings) (any, error) {
	if o.adapter.Name() == "js" {
		if o.sandbox == nil {
			return nil, rlmerr.RuntimeErrorf("js adapter selected but no sandbox is configured")
		}
		if err := sandbox.Validate(code); err != nil {
			return nil, err
		}
		result, err := o.sandbox.Run(ctx, code)
		if err != nil {
			return nil, err
		}
		return result.Value, nil
	}

	term, err := dslterm.Read(code)
	if err != nil {
		return nil, err
	}
	eval := dsleval.New(o.doc, o.reg, dsleval.Bindings(bindings))
	return eval.Eval(ctx, term)
}
