// Package extractor implements the program-synthesis subsystem
// (spec.md §4.4): the narrower Extractor term language, a compiler to
// executable Go closures, a shallow type inferencer used for branch
// pruning, and an enumerative example-driven synthesiser. Grounded on
// the same closed-sum-type idiom as internal/rlm/dslterm, specialised to
// pure unary string-to-value functions.
package extractor

// Kind tags an Extractor variant. The grammar is intentionally narrower
// than dslterm.Term's: extractors are always pure functions of the
// single implicit `input` string.
type Kind int

const (
	KindInput Kind = iota
	KindLit
	KindMatch
	KindReplace
	KindSlice
	KindSplit
	KindParseInt
	KindParseFloat
	KindAdd
	KindIf
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindLit:
		return "lit"
	case KindMatch:
		return "match"
	case KindReplace:
		return "replace"
	case KindSlice:
		return "slice"
	case KindSplit:
		return "split"
	case KindParseInt:
		return "parseInt"
	case KindParseFloat:
		return "parseFloat"
	case KindAdd:
		return "add"
	case KindIf:
		return "if"
	default:
		return "?"
	}
}

// tagOrder fixes the lexicographic order over tags used to break
// synthesis minimality ties (spec.md §4.4/§8).
var tagOrder = map[Kind]int{
	KindAdd:        0,
	KindIf:         1,
	KindInput:      2,
	KindLit:        3,
	KindMatch:      4,
	KindParseFloat: 5,
	KindParseInt:   6,
	KindReplace:    7,
	KindSlice:      8,
	KindSplit:      9,
}

// Term is an Extractor node.
type Term struct {
	Kind Kind

	Lit any // KindLit

	// KindMatch: Str, Pattern, Group
	Str     *Term
	Pattern string
	Group   int

	// KindReplace: Str, From, To
	From string
	To   string

	// KindSlice: Str, Start, End
	Start int
	End   int

	// KindSplit: Str, Delim, Index
	Delim string
	Index int

	// KindParseInt, KindParseFloat: Arg
	Arg *Term

	// KindAdd: Left, Right
	Left  *Term
	Right *Term

	// KindIf: Cond, Then, Else
	Cond *Term
	Then *Term
	Else *Term
}

// Input is the extractor's implicit argument.
func Input() *Term { return &Term{Kind: KindInput} }

// Lit wraps a constant.
func Lit(v any) *Term { return &Term{Kind: KindLit, Lit: v} }

// Match builds match(str, pattern, group).
func Match(str *Term, pattern string, group int) *Term {
	return &Term{Kind: KindMatch, Str: str, Pattern: pattern, Group: group}
}

// Replace builds replace(str, from, to).
func Replace(str *Term, from, to string) *Term {
	return &Term{Kind: KindReplace, Str: str, From: from, To: to}
}

// Slice builds slice(str, start, end) — half-open.
func Slice(str *Term, start, end int) *Term {
	return &Term{Kind: KindSlice, Str: str, Start: start, End: end}
}

// Split builds split(str, delim, index).
func Split(str *Term, delim string, index int) *Term {
	return &Term{Kind: KindSplit, Str: str, Delim: delim, Index: index}
}

// ParseInt builds parseInt(arg).
func ParseInt(arg *Term) *Term { return &Term{Kind: KindParseInt, Arg: arg} }

// ParseFloat builds parseFloat(arg).
func ParseFloat(arg *Term) *Term { return &Term{Kind: KindParseFloat, Arg: arg} }

// Add builds add(left, right).
func Add(left, right *Term) *Term { return &Term{Kind: KindAdd, Left: left, Right: right} }

// If builds if(cond, then, else).
func If(cond, then, els *Term) *Term { return &Term{Kind: KindIf, Cond: cond, Then: then, Else: els} }

// Size returns the term's node count, used by the synthesiser's
// smallest-first ordering.
func Size(t *Term) int {
	if t == nil {
		return 0
	}
	n := 1
	n += Size(t.Str)
	n += Size(t.Arg)
	n += Size(t.Left)
	n += Size(t.Right)
	n += Size(t.Cond)
	n += Size(t.Then)
	n += Size(t.Else)
	return n
}
