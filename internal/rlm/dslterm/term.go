// Package dslterm defines LCTerm (spec.md §3), the agent-facing
// S-expression DSL's tagged-variant term type, plus a tokenizer and
// recursive-descent reader that turns S-expression source into a Term
// tree. A closed Kind enum with exhaustive switches stands in for a sum
// type, matching the "closed sum over an open class hierarchy" design
// note (spec.md §9) in idiomatic Go.
package dslterm

import "fmt"

// Kind tags the variant a Term holds. The set is closed: every
// evaluator and compiler switch over Kind must be exhaustive.
type Kind int

const (
	KindInput Kind = iota
	KindLit
	KindVar
	KindGrep
	KindMatch
	KindReplace
	KindSplit
	KindParseInt
	KindParseFloat
	KindIf
	KindClassify
	KindApp
	KindLambda
	KindConstrained
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindLit:
		return "lit"
	case KindVar:
		return "var"
	case KindGrep:
		return "grep"
	case KindMatch:
		return "match"
	case KindReplace:
		return "replace"
	case KindSplit:
		return "split"
	case KindParseInt:
		return "parseInt"
	case KindParseFloat:
		return "parseFloat"
	case KindIf:
		return "if"
	case KindClassify:
		return "classify"
	case KindApp:
		return "app"
	case KindLambda:
		return "lambda"
	case KindConstrained:
		return "constrained"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ConstraintOp names one of the three constraint operators from
// spec.md §3. EpsilonPhi is reserved and has no defined rewrite; it is a
// no-op by design (spec.md §9, open question ii).
type ConstraintOp string

const (
	SigmaMu    ConstraintOp = "Σ⚡μ"
	InfOverO   ConstraintOp = "∞/0"
	EpsilonPhi ConstraintOp = "ε⚡φ"
)

// Term is LCTerm: a closed tagged variant over the DSL grammar. Only the
// fields relevant to Kind are populated; callers must switch on Kind
// before reading any other field.
type Term struct {
	Kind Kind

	// KindLit
	Lit any

	// KindVar, KindApp (callee name), KindClassify (none)
	Name string

	// KindGrep: Pattern is the regex source.
	Pattern string

	// KindMatch: Str, Pattern, Group
	// KindReplace: Str, From, To
	// KindSplit: Str, Delim, Index
	Str   *Term
	From  *Term
	To    *Term
	Delim *Term
	Group int
	Index int

	// KindParseInt, KindParseFloat: Arg
	Arg *Term

	// KindIf: Cond, Then, Else
	Cond *Term
	Then *Term
	Else *Term

	// KindClassify: Subject is tested against each case's substring in
	// order; Default is used when no case's Test substring is found.
	Subject *Term
	Cases   []ClassifyCase
	Default *Term

	// KindApp: Name is the callee (a builtin, or a name bound to a
	// lambda), Args are the call's arguments. Func is not set by the
	// reader and not read by the evaluator.
	Func *Term
	Args []*Term

	// KindLambda: Params names the bound variables, Body the expression.
	Params []string
	Body   *Term

	// KindConstrained: Op names the constraint, Child the wrapped term.
	Op    ConstraintOp
	Child *Term
}

// ClassifyCase is one (substring-test, result) arm of a classify term.
type ClassifyCase struct {
	Test   string
	Result *Term
}

// Input returns the KindInput term: the raw line/value the DSL is
// evaluating against.
func Input() *Term { return &Term{Kind: KindInput} }

// Lit wraps a constant value.
func Lit(v any) *Term { return &Term{Kind: KindLit, Lit: v} }

// Var references a bound name (lambda parameter, session binding, or a
// RESULTS/_N alias).
func Var(name string) *Term { return &Term{Kind: KindVar, Name: name} }

// Grep builds a grep(pattern) term.
func Grep(pattern string) *Term { return &Term{Kind: KindGrep, Pattern: pattern} }

// Match builds a match(str, pattern, group) term.
func Match(str *Term, pattern string, group int) *Term {
	return &Term{Kind: KindMatch, Str: str, Pattern: pattern, Group: group}
}

// Replace builds a replace(str, from, to) term.
func Replace(str, from, to *Term) *Term {
	return &Term{Kind: KindReplace, Str: str, From: from, To: to}
}

// Split builds a split(str, delim, index) term.
func Split(str, delim *Term, index int) *Term {
	return &Term{Kind: KindSplit, Str: str, Delim: delim, Index: index}
}

// ParseInt builds a parseInt(arg) term.
func ParseInt(arg *Term) *Term { return &Term{Kind: KindParseInt, Arg: arg} }

// ParseFloat builds a parseFloat(arg) term.
func ParseFloat(arg *Term) *Term { return &Term{Kind: KindParseFloat, Arg: arg} }

// If builds an if(cond, then, else) term.
func If(cond, then, els *Term) *Term { return &Term{Kind: KindIf, Cond: cond, Then: then, Else: els} }

// Classify builds a classify(subject, cases..., default) term.
func Classify(subject *Term, cases []ClassifyCase, def *Term) *Term {
	return &Term{Kind: KindClassify, Subject: subject, Cases: cases, Default: def}
}

// App builds an application of a builtin or bound function to args.
func App(name string, args ...*Term) *Term {
	return &Term{Kind: KindApp, Name: name, Args: args}
}

// Lambda builds a lambda(params..., body) term.
func Lambda(body *Term, params ...string) *Term {
	return &Term{Kind: KindLambda, Params: params, Body: body}
}

// Constrained wraps child in a constraint annotation.
func Constrained(op ConstraintOp, child *Term) *Term {
	return &Term{Kind: KindConstrained, Op: op, Child: child}
}
