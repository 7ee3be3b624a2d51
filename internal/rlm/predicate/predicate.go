// Package predicate implements the Predicate Compiler (spec.md §4.3): a
// restricted expression language over a single variable `item`, compiled
// to predicate/transform closures. Grounded on the teacher's adapter
// registry's two-pass accept/reject validation shape
// (internal/llm/adapter ValidateSource), using github.com/expr-lang/expr
// for the actual expression compile+eval rather than hand-rolling a
// parser — an out-of-pack ecosystem pick, documented in DESIGN.md.
package predicate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// denyPatterns reject any reference to host-environment names: process,
// filesystem, dynamic code, network, timers, the prototype chain, or the
// constructor-of-constructor escape. expr-lang has no such identifiers in
// scope by default, but the deny-list still guards free-form substrings a
// user might type, matching spec.md §4.3's explicit two-pass design.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bprocess\b`),
	regexp.MustCompile(`\brequire\s*\(`),
	regexp.MustCompile(`\bimport\s*\(`),
	regexp.MustCompile(`\b(fs|os|io|net|child_process)\b`),
	regexp.MustCompile(`\b(eval|Function)\s*\(`),
	regexp.MustCompile(`\b(setTimeout|setInterval|setImmediate)\b`),
	regexp.MustCompile(`__proto__`),
	regexp.MustCompile(`\bprototype\b`),
	regexp.MustCompile(`\bconstructor\b`),
	regexp.MustCompile(`\bglobalThis\b`),
}

// Compiled holds a compiled predicate source, ready to be evaluated
// repeatedly against different `item` values.
type Compiled struct {
	source  string
	program *vm.Program
}

// Compile validates src against the deny-list, then parses it as a pure
// expression of `item`. Validation failures are *Error of kind
// unsafe-expression or syntax-error.
func Compile(src string) (*Compiled, error) {
	if err := checkDenyList(src); err != nil {
		return nil, err
	}

	env := map[string]any{"item": any(nil)}
	program, err := expr.Compile(src, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, rlmerr.SyntaxErrorf("predicate compile: %s", err)
	}
	return &Compiled{source: src, program: program}, nil
}

func checkDenyList(src string) error {
	for _, pat := range denyPatterns {
		if pat.MatchString(src) {
			return rlmerr.UnsafeExpressionf("predicate references a forbidden name: %q", pat.String())
		}
	}
	return nil
}

// Predicate evaluates the compiled expression against item, returning
// false (never an error) if evaluation throws — falsey-on-throw
// semantics per spec.md §4.3.
func (c *Compiled) Predicate(item any) bool {
	out, err := expr.Run(c.program, map[string]any{"item": item})
	if err != nil {
		return false
	}
	return truthy(out)
}

// Transform evaluates the compiled expression against item as a value
// transform, returning nil on any evaluation error (null-on-throw).
func (c *Compiled) Transform(item any) any {
	out, err := expr.Run(c.program, map[string]any{"item": item})
	if err != nil {
		return nil
	}
	return out
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

// Lowering is a recognised shape translated to an equivalent data-store
// filter, avoiding an in-memory scan when one of the three patterns in
// spec.md §4.3 applies.
type Lowering struct {
	Field string
	Op    string // "eq", "contains", "lt", "le", "gt", "ge"
	Value any
}

var (
	eqPattern       = regexp.MustCompile(`^\s*item\.([A-Za-z_][A-Za-z0-9_]*)\s*===?\s*'([^']*)'\s*$`)
	containsPattern = regexp.MustCompile(`^\s*item\.([A-Za-z_][A-Za-z0-9_]*)\.includes\('([^']*)'\)\s*$`)
	comparePattern  = regexp.MustCompile(`^\s*item\.([A-Za-z_][A-Za-z0-9_]*)\s*(<=|>=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)
)

// Lower attempts to translate src into a recognised filter shape. ok is
// false ("no lowering") for anything outside the three shapes documented
// in spec.md §4.3; the in-memory predicate must be used instead.
func Lower(src string) (Lowering, bool) {
	if m := eqPattern.FindStringSubmatch(src); m != nil {
		return Lowering{Field: m[1], Op: "eq", Value: m[2]}, true
	}
	if m := containsPattern.FindStringSubmatch(src); m != nil {
		return Lowering{Field: m[1], Op: "contains", Value: m[2]}, true
	}
	if m := comparePattern.FindStringSubmatch(src); m != nil {
		n, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return Lowering{}, false
		}
		op := map[string]string{"<": "lt", "<=": "le", ">": "gt", ">=": "ge"}[m[2]]
		return Lowering{Field: m[1], Op: op, Value: n}, true
	}
	return Lowering{}, false
}

// Apply runs a Lowering against a field-accessor, for callers without a
// direct store-level filter (e.g. in-memory slices wrapped as maps).
func (l Lowering) Apply(get func(field string) (any, bool)) bool {
	v, ok := get(l.Field)
	if !ok {
		return false
	}
	switch l.Op {
	case "eq":
		return fmt.Sprint(v) == fmt.Sprint(l.Value)
	case "contains":
		return strings.Contains(fmt.Sprint(v), fmt.Sprint(l.Value))
	case "lt", "le", "gt", "ge":
		fv, ok := toFloat(v)
		if !ok {
			return false
		}
		target := l.Value.(float64)
		switch l.Op {
		case "lt":
			return fv < target
		case "le":
			return fv <= target
		case "gt":
			return fv > target
		default:
			return fv >= target
		}
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
