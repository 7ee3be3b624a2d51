// Package sandbox implements the JS Sandbox (spec.md §4.6): a
// restricted-global goja runtime for executing one untrusted JavaScript
// fragment per call, with wall-clock timeout, heap-delta memory
// accounting, and sub-call limiting. Grounded on the teacher's
// internal/tools/shell.go shape for resource-limited execution
// (context-bounded timeout, a limits struct, a typed timed-out result)
// adapted from an external process to an in-process interpreter.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/sahilm/fuzzy"

	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/extractor"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// Config bounds one sandbox's resource usage, matching the
// `sandbox: {maxSubCalls, turnTimeoutMs, memoryLimitMb}` config shape
// (spec.md §6).
type Config struct {
	TimeoutSeconds int
	MemoryLimitMB  int
	MaxSubCalls    int
}

// DefaultConfig matches spec.md §4.6's stated defaults.
func DefaultConfig() Config {
	return Config{TimeoutSeconds: 30, MemoryLimitMB: 128, MaxSubCalls: 50}
}

func (c Config) withDefaults() Config {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MemoryLimitMB <= 0 {
		c.MemoryLimitMB = 128
	}
	if c.MaxSubCalls <= 0 {
		c.MaxSubCalls = 50
	}
	return c
}

// Result is what one fragment execution produced.
type Result struct {
	Value  any
	Logs   []string
	Memory []any
}

// Sandbox executes fragments against one session's document. The
// `memory` array persists across Run calls on the same Sandbox, the
// way spec.md §4.6 describes it — a new goja.Runtime is built per call,
// but its `memory` global is seeded from, and written back to, the
// Sandbox's own state.
type Sandbox struct {
	doc    *document.LineStore
	cfg    Config
	memory []any
}

// New builds a Sandbox bound to doc.
func New(doc *document.LineStore, cfg Config) *Sandbox {
	return &Sandbox{doc: doc, cfg: cfg.withDefaults()}
}

// Run validates then executes source once, returning its completion
// value, captured console.log output, and the resulting memory array.
func (s *Sandbox) Run(ctx context.Context, source string) (Result, error) {
	if err := Validate(source); err != nil {
		return Result{}, err
	}

	fullText, err := s.fullText(ctx)
	if err != nil {
		return Result{}, err
	}
	lineTexts, err := s.lineContents(ctx)
	if err != nil {
		return Result{}, err
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(256)

	var logs []string
	subCalls := 0
	checkSubCalls := func() error {
		subCalls++
		if subCalls > s.cfg.MaxSubCalls {
			return rlmerr.SubCallLimitf("exceeded max sub-calls (%d)", s.cfg.MaxSubCalls)
		}
		return nil
	}

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(vm.Set("context", fullText))
	must(vm.Set("__linesArray", lineTexts))
	must(vm.Set("memory", append([]any{}, s.memory...)))
	must(vm.Set("console", map[string]any{
		"log": func(args ...any) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = fmt.Sprint(a)
			}
			logs = append(logs, strings.Join(parts, " "))
		},
	}))
	must(vm.Set("grep", func(pattern string) (any, error) {
		if err := checkSubCalls(); err != nil {
			return nil, err
		}
		return s.grep(ctx, pattern)
	}))
	must(vm.Set("fuzzy_search", func(query string) (any, error) {
		if err := checkSubCalls(); err != nil {
			return nil, err
		}
		return s.fuzzySearch(ctx, query)
	}))
	must(vm.Set("locate_line", func(needle string) (any, error) {
		if err := checkSubCalls(); err != nil {
			return nil, err
		}
		return s.locateLine(ctx, needle)
	}))
	must(vm.Set("synthesize_extractor", func(pairs []any) (any, error) {
		if err := checkSubCalls(); err != nil {
			return nil, err
		}
		return synthesizeExtractorResult(pairs)
	}))
	must(vm.Set("synthesize_regex", func(pairs []any) (any, error) {
		if err := checkSubCalls(); err != nil {
			return nil, err
		}
		return synthesizeRegexResult(pairs)
	}))

	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	timer := time.AfterFunc(timeout, func() { vm.Interrupt("timeout") })
	defer timer.Stop()

	memLimit := int64(s.cfg.MemoryLimitMB) * 1024 * 1024
	var baseline goruntime.MemStats
	goruntime.ReadMemStats(&baseline)
	stopMem := make(chan struct{})
	defer close(stopMem)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopMem:
				return
			case <-ticker.C:
				var m goruntime.MemStats
				goruntime.ReadMemStats(&m)
				if int64(m.HeapAlloc)-int64(baseline.HeapAlloc) > memLimit {
					vm.Interrupt("memory-exceeded")
					return
				}
			}
		}
	}()

	value, runErr := runProtected(vm, source)
	if runErr != nil {
		return Result{Logs: logs}, classifyRunError(runErr)
	}

	newMemory := exportMemory(vm.Get("memory"))
	s.memory = newMemory

	return Result{Value: exportValue(value), Logs: logs, Memory: newMemory}, nil
}

// runProtected recovers panics raised by `must` above (vm.Set only
// fails on non-function, non-convertible values, which never happens
// for the fixed globals this package registers, but a panic path keeps
// a future mistake from crashing the orchestrator).
func runProtected(vm *goja.Runtime, source string) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("sandbox: %v", r)
		}
	}()
	return vm.RunString(source)
}

func exportValue(v goja.Value) any {
	if v == nil {
		return nil
	}
	return v.Export()
}

func exportMemory(v goja.Value) []any {
	if v == nil {
		return nil
	}
	exported, ok := v.Export().([]any)
	if !ok {
		return nil
	}
	return exported
}

func classifyRunError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		reason := fmt.Sprint(interrupted.Value())
		if reason == "memory-exceeded" {
			return rlmerr.MemoryExceededf("sandbox exceeded memory limit")
		}
		return rlmerr.Timeoutf("sandbox exceeded wall-clock timeout")
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if goErr, ok := exc.Value().Export().(error); ok {
			return goErr
		}
		return rlmerr.RuntimeErrorf("%s", exc.Error())
	}
	return rlmerr.RuntimeErrorf("%s", err.Error())
}

func (s *Sandbox) fullText(ctx context.Context) (string, error) {
	lines, err := s.lineContents(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Sandbox) lineContents(ctx context.Context) ([]string, error) {
	count, err := s.doc.GetLineCount(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := s.doc.GetLines(ctx, 1, count)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Content
	}
	return out, nil
}

func (s *Sandbox) grep(ctx context.Context, pattern string) ([]map[string]any, error) {
	term := extractor.Match(extractor.Input(), pattern, 0)
	if _, err := extractor.Compile(term); err != nil {
		return nil, err
	}
	lines, err := s.docLines(ctx)
	if err != nil {
		return nil, err
	}
	fn, _ := extractor.Compile(term)
	var hits []map[string]any
	for _, l := range lines {
		m, err := fn(l.Content)
		if err != nil || m == nil {
			continue
		}
		hits = append(hits, map[string]any{"match": m, "line": l.Content, "lineNum": l.LineNum})
	}
	if hits == nil {
		hits = []map[string]any{}
	}
	return hits, nil
}

func (s *Sandbox) fuzzySearch(ctx context.Context, query string) ([]map[string]any, error) {
	lines, err := s.docLines(ctx)
	if err != nil {
		return nil, err
	}
	matches := fuzzy.FindFrom(query, sandboxLineSource(lines))
	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		l := lines[m.Index]
		out = append(out, map[string]any{"line": l.Content, "lineNum": l.LineNum, "score": m.Score})
	}
	return out, nil
}

func (s *Sandbox) locateLine(ctx context.Context, needle string) (any, error) {
	lines, err := s.docLines(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if strings.Contains(l.Content, needle) {
			return float64(l.LineNum), nil
		}
	}
	return nil, nil
}

func (s *Sandbox) docLines(ctx context.Context) ([]document.Line, error) {
	count, err := s.doc.GetLineCount(ctx)
	if err != nil {
		return nil, err
	}
	return s.doc.GetLines(ctx, 1, count)
}

type sandboxLineSource []document.Line

func (s sandboxLineSource) String(i int) string { return s[i].Content }
func (s sandboxLineSource) Len() int            { return len(s) }

func synthesizeExtractorResult(pairs []any) (map[string]any, error) {
	examples, err := toExamples(pairs)
	if err != nil {
		return nil, err
	}
	target := extractor.TUnknown
	if len(examples) > 0 {
		switch examples[0].Output.(type) {
		case float64:
			target = extractor.TNumber
		case string:
			target = extractor.TString
		}
	}
	term, ok := extractor.Synthesize(examples, target, 3)
	if !ok {
		return map[string]any{"found": false}, nil
	}
	fn, err := extractor.Compile(term)
	if err != nil {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "apply": fn}, nil
}

func synthesizeRegexResult(pairs []any) (map[string]any, error) {
	examples, err := toExamples(pairs)
	if err != nil {
		return nil, err
	}
	pattern, group, ok := extractor.SynthesizeRegex(examples)
	if !ok {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "pattern": pattern, "group": float64(group)}, nil
}

func toExamples(pairs []any) ([]extractor.Example, error) {
	out := make([]extractor.Example, 0, len(pairs))
	for _, p := range pairs {
		m, ok := p.(map[string]any)
		if !ok {
			return nil, rlmerr.BadInputf("synthesize: expected {input, output} objects")
		}
		input, _ := m["input"].(string)
		out = append(out, extractor.Example{Input: input, Output: m["output"]})
	}
	return out, nil
}
