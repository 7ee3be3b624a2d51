package extractor

// Type is the shallow result-type lattice for extractor terms:
// string, number, null (a term that always yields nil), or unknown
// when the static shape can't rule anything out (spec.md §4.4).
type Type int

const (
	TUnknown Type = iota
	TString
	TNumber
	TNull
)

func (ty Type) String() string {
	switch ty {
	case TString:
		return "string"
	case TNumber:
		return "number"
	case TNull:
		return "null"
	default:
		return "unknown"
	}
}

// Infer returns the statically-known result type of t. It is
// conservative: anywhere the two branches of an `if` disagree, or a
// literal's runtime type isn't string/number/nil, it reports
// TUnknown rather than guessing — canProduce below compensates by
// treating TUnknown as compatible with any target, so no well-typed
// extractor is ever wrongly pruned.
func Infer(t *Term) Type {
	if t == nil {
		return TUnknown
	}
	switch t.Kind {
	case KindInput, KindMatch, KindReplace, KindSlice, KindSplit:
		return TString
	case KindParseInt, KindParseFloat, KindAdd:
		return TNumber
	case KindLit:
		switch t.Lit.(type) {
		case nil:
			return TNull
		case string:
			return TString
		case float64, int, int64:
			return TNumber
		default:
			return TUnknown
		}
	case KindIf:
		then, els := Infer(t.Then), Infer(t.Else)
		if then == els {
			return then
		}
		return TUnknown
	default:
		return TUnknown
	}
}

// CanProduce reports whether t could possibly evaluate to a value of
// type want. It has no false negatives on well-typed programs: a
// well-typed term whose true type is `want` is never reported as
// incapable of producing it.
func CanProduce(t *Term, want Type) bool {
	got := Infer(t)
	if got == TUnknown || want == TUnknown {
		return true
	}
	return got == want
}
