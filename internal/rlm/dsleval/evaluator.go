package dsleval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/dslterm"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// Bindings resolves session-level names (RESULTS, _N, user variables) to
// handles; the evaluator expands a handle's stored elements on lookup.
type Bindings map[string]registry.Handle

// Evaluator interprets LCTerm over one session's document and registry.
type Evaluator struct {
	doc      *document.LineStore
	reg      *registry.Registry
	bindings Bindings
	log      []string
}

// New builds an Evaluator. bindings is read, never mutated — the caller
// (orchestrator) owns binding updates after a turn completes.
func New(doc *document.LineStore, reg *registry.Registry, bindings Bindings) *Evaluator {
	return &Evaluator{doc: doc, reg: reg, bindings: bindings}
}

// Log returns the evaluation log recording each constraint application,
// in order, per spec.md §4.5.
func (e *Evaluator) Log() []string {
	return e.log
}

// Eval evaluates a top-level term with no lambda scope.
func (e *Evaluator) Eval(ctx context.Context, term *dslterm.Term) (any, error) {
	return e.eval(ctx, term, nil)
}

type scope map[string]any

func (e *Evaluator) eval(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch t.Kind {
	case dslterm.KindInput:
		if v, ok := sc["input"]; ok {
			return v, nil
		}
		return nil, rlmerr.UnboundVariablef("input is not bound in this context")

	case dslterm.KindLit:
		return t.Lit, nil

	case dslterm.KindVar:
		return e.resolveVar(ctx, t.Name, sc)

	case dslterm.KindGrep:
		return e.grep(ctx, t.Pattern)

	case dslterm.KindMatch:
		return e.evalMatch(ctx, t, sc)

	case dslterm.KindReplace:
		return e.evalReplace(ctx, t, sc)

	case dslterm.KindSplit:
		return e.evalSplit(ctx, t, sc)

	case dslterm.KindParseInt:
		v, err := e.eval(ctx, t.Arg, sc)
		if err != nil {
			return nil, err
		}
		return parseIntValue(v), nil

	case dslterm.KindParseFloat:
		v, err := e.eval(ctx, t.Arg, sc)
		if err != nil {
			return nil, err
		}
		return parseFloatValue(v), nil

	case dslterm.KindIf:
		cond, err := e.eval(ctx, t.Cond, sc)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(ctx, t.Then, sc)
		}
		return e.eval(ctx, t.Else, sc)

	case dslterm.KindClassify:
		return e.evalClassify(ctx, t, sc)

	case dslterm.KindLambda:
		return t, nil // lambdas evaluate to themselves; callers apply them

	case dslterm.KindApp:
		return e.evalApp(ctx, t, sc)

	case dslterm.KindConstrained:
		return e.evalConstrained(ctx, t, sc)

	default:
		return nil, rlmerr.RuntimeErrorf("unhandled term kind %s", t.Kind)
	}
}

// resolveVar looks up a name first in the current lambda scope, then in
// session bindings (dereferencing through the handle registry). RESULTS
// and _N resolve only as ordinary entries of the bindings map; there is
// no separate alias lookup.
func (e *Evaluator) resolveVar(ctx context.Context, name string, sc scope) (any, error) {
	if sc != nil {
		if v, ok := sc[name]; ok {
			return v, nil
		}
	}
	if h, ok := e.bindings[name]; ok {
		data, err := e.reg.Expand(ctx, h, registry.ExpandOptions{})
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		return data, nil
	}
	return nil, rlmerr.UnboundVariablef("unbound variable %q", name)
}

func (e *Evaluator) grep(ctx context.Context, pattern string) ([]any, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, rlmerr.SyntaxErrorf("grep: invalid pattern %q: %s", pattern, err)
	}
	count, err := e.doc.GetLineCount(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := e.doc.GetLines(ctx, 1, count)
	if err != nil {
		return nil, err
	}

	var hits []any
	for _, line := range lines {
		locs := re.FindAllStringSubmatchIndex(line.Content, -1)
		for _, loc := range locs {
			matchStart, matchEnd := loc[0], loc[1]
			groups := make([]string, 0, len(loc)/2)
			for i := 0; i < len(loc); i += 2 {
				if loc[i] < 0 {
					groups = append(groups, "")
					continue
				}
				groups = append(groups, line.Content[loc[i]:loc[i+1]])
			}
			hits = append(hits, GrepHit{
				Match:   line.Content[matchStart:matchEnd],
				Line:    line.Content,
				LineNum: line.LineNum,
				Index:   matchStart,
				Groups:  groups,
			})
		}
	}
	if hits == nil {
		hits = []any{}
	}
	return hits, nil
}

func (e *Evaluator) evalMatch(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	strVal, err := e.eval(ctx, t.Str, sc)
	if err != nil {
		return nil, err
	}
	text, ok := lineText(strVal)
	if !ok {
		return nil, rlmerr.RuntimeErrorf("match: operand is not a string-like value")
	}
	re, err := regexp.Compile(t.Pattern)
	if err != nil {
		return nil, rlmerr.SyntaxErrorf("match: invalid pattern %q: %s", t.Pattern, err)
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	if t.Group < 0 || t.Group >= len(m) {
		return nil, nil
	}
	return m[t.Group], nil
}

func (e *Evaluator) evalReplace(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	strVal, err := e.eval(ctx, t.Str, sc)
	if err != nil {
		return nil, err
	}
	text, ok := lineText(strVal)
	if !ok {
		return nil, rlmerr.RuntimeErrorf("replace: operand is not a string-like value")
	}
	fromVal, err := e.eval(ctx, t.From, sc)
	if err != nil {
		return nil, err
	}
	toVal, err := e.eval(ctx, t.To, sc)
	if err != nil {
		return nil, err
	}
	from, _ := lineText(fromVal)
	to, _ := lineText(toVal)
	return strings.ReplaceAll(text, from, to), nil
}

func (e *Evaluator) evalSplit(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	strVal, err := e.eval(ctx, t.Str, sc)
	if err != nil {
		return nil, err
	}
	text, ok := lineText(strVal)
	if !ok {
		return nil, rlmerr.RuntimeErrorf("split: operand is not a string-like value")
	}
	delimVal, err := e.eval(ctx, t.Delim, sc)
	if err != nil {
		return nil, err
	}
	delim, _ := lineText(delimVal)
	parts := strings.Split(text, delim)
	if t.Index < 0 || t.Index >= len(parts) {
		return nil, nil
	}
	return parts[t.Index], nil
}

func (e *Evaluator) evalClassify(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	subjectVal, err := e.eval(ctx, t.Subject, sc)
	if err != nil {
		return nil, err
	}
	text, ok := lineText(subjectVal)
	if !ok {
		text = formatValue(subjectVal)
	}
	for _, c := range t.Cases {
		if strings.Contains(text, c.Test) {
			return e.eval(ctx, c.Result, sc)
		}
	}
	return e.eval(ctx, t.Default, sc)
}

func (e *Evaluator) evalConstrained(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	child := t.Child
	switch t.Op {
	case dslterm.InfOverO:
		child = wrapNullGuard(child)
	case dslterm.SigmaMu:
		child = simplify(child)
	case dslterm.EpsilonPhi:
		// no-op: reserved for future performance rewrites.
	}
	e.log = append(e.log, fmt.Sprintf("constraint %s applied", t.Op))
	return e.eval(ctx, child, sc)
}

// wrapNullGuard implements ∞/0: nullable subterms become
// if(cond=t, then=t, else=null).
func wrapNullGuard(t *dslterm.Term) *dslterm.Term {
	return dslterm.If(t, t, dslterm.Lit(nil))
}

// simplify implements Σ⚡μ's algebraic simplifications: the identity
// replace(x, a, a) -> x, and constant-folded if-branches.
func simplify(t *dslterm.Term) *dslterm.Term {
	switch t.Kind {
	case dslterm.KindReplace:
		if t.From.Kind == dslterm.KindLit && t.To.Kind == dslterm.KindLit && t.From.Lit == t.To.Lit {
			return simplify(t.Str)
		}
	case dslterm.KindIf:
		if t.Cond.Kind == dslterm.KindLit {
			if b, ok := t.Cond.Lit.(bool); ok {
				if b {
					return simplify(t.Then)
				}
				return simplify(t.Else)
			}
		}
	}
	return t
}

// lineSource adapts document.Line slices to sahilm/fuzzy's Source
// interface, the same shape the teacher's TUI file-completer uses
// (internal/tui/chat/files.go's FileCompletionSource).
type lineSource []document.Line

func (s lineSource) String(i int) string { return s[i].Content }
func (s lineSource) Len() int            { return len(s) }

// fuzzySearch ranks every document line against query using
// sahilm/fuzzy's subsequence scoring, returning GrepHit-shaped results
// ordered by match quality (spec.md §4.5's "line-store ... fuzzy ...
// tools").
func (e *Evaluator) fuzzySearch(ctx context.Context, query string) ([]any, error) {
	count, err := e.doc.GetLineCount(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := e.doc.GetLines(ctx, 1, count)
	if err != nil {
		return nil, err
	}
	matches := fuzzy.FindFrom(query, lineSource(lines))
	hits := make([]any, 0, len(matches))
	for _, m := range matches {
		l := lines[m.Index]
		hits = append(hits, GrepHit{Match: l.Content, Line: l.Content, LineNum: l.LineNum, Index: 0})
	}
	return hits, nil
}

func parseIntValue(v any) any {
	text, ok := lineText(v)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return nil
	}
	return float64(n)
}

func parseFloatValue(v any) any {
	text, ok := lineText(v)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil
	}
	return f
}
