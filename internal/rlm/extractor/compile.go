package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// Fn is a compiled extractor: a pure function from the input string to
// a string, float64, or nil.
type Fn func(input string) (any, error)

// Compile lowers a Term into an executable Fn. Patterns embedded in
// match terms are taken as literal regexes — the synthesiser only ever
// builds terms from escaped substrings of the training examples, so
// user-supplied raw text destined for pattern position must go through
// EscapeMeta first (spec.md §4.4). Replace's From and To are plain
// strings, replaced literally.
func Compile(t *Term) (Fn, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	return func(input string) (any, error) {
		return eval(t, input)
	}, nil
}

// EscapeMeta escapes regex metacharacters so an untrusted literal can
// be embedded safely in a match/replace pattern position.
func EscapeMeta(s string) string {
	return regexp.QuoteMeta(s)
}

func validate(t *Term) error {
	if t == nil {
		return rlmerr.BadInputf("extractor: nil term")
	}
	switch t.Kind {
	case KindInput, KindLit:
		return nil
	case KindMatch:
		if _, err := compileMatcher(t.Pattern); err != nil {
			return err
		}
		return validate(t.Str)
	case KindReplace:
		return validate(t.Str)
	case KindSlice:
		return validate(t.Str)
	case KindSplit:
		return validate(t.Str)
	case KindParseInt, KindParseFloat:
		return validate(t.Arg)
	case KindAdd:
		if err := validate(t.Left); err != nil {
			return err
		}
		return validate(t.Right)
	case KindIf:
		if err := validate(t.Cond); err != nil {
			return err
		}
		if err := validate(t.Then); err != nil {
			return err
		}
		return validate(t.Else)
	default:
		return rlmerr.BadInputf("extractor: unknown kind %s", t.Kind)
	}
}

func eval(t *Term, input string) (any, error) {
	switch t.Kind {
	case KindInput:
		return input, nil

	case KindLit:
		return t.Lit, nil

	case KindMatch:
		str, err := evalString(t.Str, input)
		if err != nil {
			return nil, err
		}
		m, err := compileMatcher(t.Pattern)
		if err != nil {
			return nil, err
		}
		groups, ok := m.find(str)
		if !ok || t.Group < 0 || t.Group >= len(groups) {
			return nil, nil
		}
		return groups[t.Group], nil

	case KindReplace:
		str, err := evalString(t.Str, input)
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(str, t.From, t.To), nil

	case KindSlice:
		str, err := evalString(t.Str, input)
		if err != nil {
			return nil, err
		}
		start, end := clampRange(t.Start, t.End, len(str))
		if start >= end {
			return "", nil
		}
		return str[start:end], nil

	case KindSplit:
		str, err := evalString(t.Str, input)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(str, t.Delim)
		idx := t.Index
		if idx < 0 {
			idx += len(parts)
		}
		if idx < 0 || idx >= len(parts) {
			return nil, nil
		}
		return parts[idx], nil

	case KindParseInt:
		v, err := eval(t.Arg, input)
		if err != nil {
			return nil, err
		}
		s, ok := asString(v)
		if !ok {
			return nil, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, nil
		}
		return float64(n), nil

	case KindParseFloat:
		v, err := eval(t.Arg, input)
		if err != nil {
			return nil, err
		}
		s, ok := asString(v)
		if !ok {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, nil
		}
		return f, nil

	case KindAdd:
		l, err := eval(t.Left, input)
		if err != nil {
			return nil, err
		}
		r, err := eval(t.Right, input)
		if err != nil {
			return nil, err
		}
		lf, lok := asNumber(l)
		rf, rok := asNumber(r)
		if lok && rok {
			return lf + rf, nil
		}
		ls, lsok := asString(l)
		rs, rsok := asString(r)
		if lsok && rsok {
			return ls + rs, nil
		}
		return nil, nil

	case KindIf:
		cond, err := eval(t.Cond, input)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return eval(t.Then, input)
		}
		return eval(t.Else, input)

	default:
		return nil, rlmerr.RuntimeErrorf("extractor: unhandled kind %s", t.Kind)
	}
}

func evalString(t *Term, input string) (string, error) {
	v, err := eval(t, input)
	if err != nil {
		return "", err
	}
	s, ok := asString(v)
	if !ok {
		return "", rlmerr.RuntimeErrorf("extractor: expected string-producing subterm, got %T", v)
	}
	return s, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

func clampRange(start, end, length int) (int, int) {
	if start < 0 {
		start += length
	}
	if end < 0 {
		end += length
	}
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > length {
		start = length
	}
	return start, end
}
