package extractor

import (
	"sort"
)

// Example is one (input, output) training pair handed to the
// synthesiser (spec.md §4.4's `synthesize_extractor`).
type Example struct {
	Input  string
	Output any
}

// scanPatterns is the fixed library of scanner regexes the synthesiser
// draws on before resorting to example-mined literals: numbers, bare
// words, quoted strings, and the two common `key: value`/`key=value`
// field shapes.
var scanPatterns = []struct {
	pattern string
	group   int
}{
	{`-?[0-9]+\.[0-9]+`, 0},
	{`-?[0-9]+`, 0},
	{`[A-Za-z]+`, 0},
	{`"([^"]*)"`, 1},
	{`:\s*(\S+)`, 1},
	{`=\s*(\S+)`, 1},
}

// SynthesizeRegex is the sandbox-facing `synthesize_regex` primitive
// (spec.md §4.6): a narrower search than Synthesize that returns just
// the winning pattern and capture group rather than a full Extractor
// term, for callers that want to build their own match/replace calls.
func SynthesizeRegex(examples []Example) (pattern string, group int, ok bool) {
	for _, p := range scanPatterns {
		term := Match(Input(), p.pattern, p.group)
		if satisfiesAll(term, examples) {
			return p.pattern, p.group, true
		}
	}
	return "", 0, false
}

// candidate pairs a term with its cached node count so the minimality
// sort (smallest size, then fixed lexicographic tag order) does not
// recompute the root's size on every comparison.
type candidate struct {
	term *Term
	size int
}

// Synthesize performs a type-guided enumerative search for the
// smallest extractor consistent with every example, preferring fewer
// nodes and, among ties, the term whose root (then leftmost differing
// subterm) sorts first under the fixed tag order (spec.md §4.4/§8's
// minimality requirement). maxDepth bounds how deep generated terms
// may nest; it returns (nil, false) if no such extractor exists within
// that bound.
func Synthesize(examples []Example, target Type, maxDepth int) (*Term, bool) {
	if len(examples) == 0 {
		return nil, false
	}

	pool := generate(examples, maxDepth)

	var candidates []candidate
	for _, t := range pool {
		if !CanProduce(t, target) {
			continue
		}
		candidates = append(candidates, candidate{term: t, size: Size(t)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].size != candidates[j].size {
			return candidates[i].size < candidates[j].size
		}
		return less(candidates[i].term, candidates[j].term)
	})

	for _, c := range candidates {
		if satisfiesAll(c.term, examples) {
			return c.term, true
		}
	}
	return nil, false
}

func satisfiesAll(t *Term, examples []Example) bool {
	fn, err := Compile(t)
	if err != nil {
		return false
	}
	for _, ex := range examples {
		got, err := fn(ex.Input)
		if err != nil {
			return false
		}
		if !equalOutput(got, ex.Output) {
			return false
		}
	}
	return true
}

func equalOutput(got, want any) bool {
	if want == nil {
		return got == nil
	}
	switch w := want.(type) {
	case float64:
		g, ok := got.(float64)
		return ok && g == w
	case int:
		g, ok := got.(float64)
		return ok && g == float64(w)
	case string:
		g, ok := got.(string)
		return ok && g == w
	default:
		return got == want
	}
}

// less implements the fixed tag-order tie-break between two
// equal-size candidates: compare root tags, then recurse into the
// first differing child in a fixed traversal order.
func less(a, b *Term) bool {
	if a.Kind != b.Kind {
		return tagOrder[a.Kind] < tagOrder[b.Kind]
	}
	for _, pair := range [][2]*Term{
		{a.Str, b.Str}, {a.Arg, b.Arg}, {a.Left, b.Left},
		{a.Right, b.Right}, {a.Cond, b.Cond}, {a.Then, b.Then}, {a.Else, b.Else},
	} {
		x, y := pair[0], pair[1]
		if x == nil || y == nil {
			continue
		}
		if Size(x) != Size(y) {
			return Size(x) < Size(y)
		}
		if x.Kind != y.Kind {
			return less(x, y)
		}
	}
	return false
}

// generate produces a bounded candidate pool. Literal fragments (regex
// patterns, delimiters, slice offsets) are mined from the examples
// themselves rather than enumerated from an unbounded alphabet, which
// keeps the search finite while still covering the shapes spec.md's
// extractor scenarios exercise: numeric fields, delimited columns,
// fixed-offset slices, and grouped numbers behind a fixed literal
// prefix (e.g. a currency symbol).
func generate(examples []Example, maxDepth int) []*Term {
	var pool []*Term
	pool = append(pool, Input())

	for _, p := range scanPatterns {
		pool = append(pool, Match(Input(), p.pattern, p.group))
	}
	for _, p := range numericGroupPatterns(examples) {
		pool = append(pool, Match(Input(), p.pattern, p.group))
	}

	delims := delimsFromExamples(examples)
	for _, d := range delims {
		for idx := -2; idx <= 2; idx++ {
			pool = append(pool, Split(Input(), d, idx))
		}
	}

	for _, off := range offsetsFromExamples(examples) {
		pool = append(pool, Slice(Input(), off, -1))
	}

	if maxDepth < 2 {
		return pool
	}

	var stringTerms []*Term
	for _, t := range pool {
		if Infer(t) == TString {
			stringTerms = append(stringTerms, t)
		}
	}

	// Strip grouping separators before the numeric parse stage — the
	// shape spec.md's canonical currency example needs:
	// parseInt(replace(match(input, pattern, group), ",", "")).
	var stripped []*Term
	for _, t := range stringTerms {
		stripped = append(stripped, Replace(t, ",", ""))
	}
	pool = append(pool, stripped...)

	var wrapTargets []*Term
	wrapTargets = append(wrapTargets, stringTerms...)
	wrapTargets = append(wrapTargets, stripped...)

	var wrapped []*Term
	for _, t := range wrapTargets {
		wrapped = append(wrapped, ParseFloat(t), ParseInt(t))
	}
	pool = append(pool, wrapped...)

	if maxDepth >= 3 {
		var numeric []*Term
		for _, t := range pool {
			if Infer(t) == TNumber {
				numeric = append(numeric, t)
			}
		}
		for _, l := range numeric {
			for _, r := range numeric {
				pool = append(pool, Add(l, r))
			}
		}
	}

	return pool
}

// numericGroupPatterns mines a regex literal when every example's
// input has the same single literal character immediately before its
// first digit run (e.g. "$" in "Price: $1,234" and "Price: $42"):
// a pattern that anchors on that literal and captures the digit/comma
// run after it. Returns nothing if the examples don't agree on one.
func numericGroupPatterns(examples []Example) []struct {
	pattern string
	group   int
} {
	prefix, ok := commonDigitPrefix(examples)
	if !ok {
		return nil
	}
	return []struct {
		pattern string
		group   int
	}{
		{EscapeMeta(prefix) + `([0-9][0-9,]*(?:\.[0-9]+)?)`, 1},
	}
}

func commonDigitPrefix(examples []Example) (string, bool) {
	var prefix string
	for i, ex := range examples {
		idx := firstDigitIndex(ex.Input)
		if idx <= 0 {
			return "", false
		}
		p := ex.Input[idx-1 : idx]
		if i == 0 {
			prefix = p
		} else if p != prefix {
			return "", false
		}
	}
	return prefix, prefix != ""
}

func firstDigitIndex(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return i
		}
	}
	return -1
}

func delimsFromExamples(examples []Example) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range []string{",", ":", "=", " ", "|", "\t"} {
		for _, ex := range examples {
			if containsRune(ex.Input, d) {
				if !seen[d] {
					seen[d] = true
					out = append(out, d)
				}
				break
			}
		}
	}
	return out
}

func offsetsFromExamples(examples []Example) []int {
	seen := map[int]bool{}
	var out []int
	for _, ex := range examples {
		if s, ok := ex.Output.(string); ok && s != "" {
			if idx := indexOf(ex.Input, s); idx >= 0 && !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	return out
}

func containsRune(s, substr string) bool {
	return indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
