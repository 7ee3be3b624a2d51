package dslterm

import (
	"strconv"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// Lower converts a raw S-expression into a Term, dispatching on the
// list's head symbol for the special forms named in spec.md §3; any
// other head symbol becomes a KindApp call (covers filter/map/count and
// other evaluator builtins that are not themselves special forms).
func Lower(s sexpr) (*Term, error) {
	if s.isAtom() {
		if sym, ok := s.symbol(); ok {
			switch sym {
			case "true", "false", "null":
				v, _ := atomToLit(s)
				return Lit(v), nil
			}
			if _, err := strconv.ParseFloat(sym, 64); err == nil {
				v, _ := atomToLit(s)
				return Lit(v), nil
			}
			return Var(sym), nil
		}
		v, _ := atomToLit(s)
		return Lit(v), nil
	}

	if len(s.list) == 0 {
		return nil, rlmerr.SyntaxErrorf("empty list is not a valid expression")
	}
	head, ok := s.list[0].symbol()
	if !ok {
		return nil, rlmerr.SyntaxErrorf("expression head must be a symbol, got %v", formatSexprHead(s.list[0]))
	}
	args := s.list[1:]

	switch head {
	case "input":
		if len(args) != 0 {
			return nil, rlmerr.SyntaxErrorf("input takes no arguments")
		}
		return Input(), nil

	case "lit":
		if len(args) != 1 {
			return nil, rlmerr.SyntaxErrorf("lit takes exactly one argument")
		}
		v, ok := atomToLit(args[0])
		if !ok {
			return nil, rlmerr.SyntaxErrorf("lit argument must be a literal value")
		}
		return Lit(v), nil

	case "grep":
		if len(args) != 1 {
			return nil, rlmerr.SyntaxErrorf("grep takes exactly one pattern argument")
		}
		pattern, ok := stringLiteral(args[0])
		if !ok {
			return nil, rlmerr.SyntaxErrorf("grep pattern must be a string literal")
		}
		return Grep(pattern), nil

	case "match":
		if len(args) != 3 {
			return nil, rlmerr.SyntaxErrorf("match takes (str, pattern, group)")
		}
		str, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		pattern, ok := stringLiteral(args[1])
		if !ok {
			return nil, rlmerr.SyntaxErrorf("match pattern must be a string literal")
		}
		group, err := intLiteral(args[2])
		if err != nil {
			return nil, err
		}
		return Match(str, pattern, group), nil

	case "replace":
		if len(args) != 3 {
			return nil, rlmerr.SyntaxErrorf("replace takes (str, from, to)")
		}
		str, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		from, err := Lower(args[1])
		if err != nil {
			return nil, err
		}
		to, err := Lower(args[2])
		if err != nil {
			return nil, err
		}
		return Replace(str, from, to), nil

	case "split":
		if len(args) != 3 {
			return nil, rlmerr.SyntaxErrorf("split takes (str, delim, index)")
		}
		str, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		delim, err := Lower(args[1])
		if err != nil {
			return nil, err
		}
		index, err := intLiteral(args[2])
		if err != nil {
			return nil, err
		}
		return Split(str, delim, index), nil

	case "parseInt":
		if len(args) != 1 {
			return nil, rlmerr.SyntaxErrorf("parseInt takes exactly one argument")
		}
		arg, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		return ParseInt(arg), nil

	case "parseFloat":
		if len(args) != 1 {
			return nil, rlmerr.SyntaxErrorf("parseFloat takes exactly one argument")
		}
		arg, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		return ParseFloat(arg), nil

	case "if":
		if len(args) != 3 {
			return nil, rlmerr.SyntaxErrorf("if takes (cond, then, else)")
		}
		cond, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		then, err := Lower(args[1])
		if err != nil {
			return nil, err
		}
		els, err := Lower(args[2])
		if err != nil {
			return nil, err
		}
		return If(cond, then, els), nil

	case "classify":
		if len(args) < 2 {
			return nil, rlmerr.SyntaxErrorf("classify requires a subject and at least a default branch")
		}
		subject, err := Lower(args[0])
		if err != nil {
			return nil, err
		}
		rest := args[1:]
		def, err := Lower(rest[len(rest)-1])
		if err != nil {
			return nil, err
		}
		var cases []ClassifyCase
		for _, pair := range rest[:len(rest)-1] {
			if len(pair.list) != 2 {
				return nil, rlmerr.SyntaxErrorf("classify case must be (test result)")
			}
			test, ok := stringLiteral(pair.list[0])
			if !ok {
				return nil, rlmerr.SyntaxErrorf("classify test must be a string literal")
			}
			result, err := Lower(pair.list[1])
			if err != nil {
				return nil, err
			}
			cases = append(cases, ClassifyCase{Test: test, Result: result})
		}
		return Classify(subject, cases, def), nil

	case "lambda":
		if len(args) != 2 {
			return nil, rlmerr.SyntaxErrorf("lambda takes (params, body)")
		}
		params, err := paramList(args[0])
		if err != nil {
			return nil, err
		}
		body, err := Lower(args[1])
		if err != nil {
			return nil, err
		}
		return Lambda(body, params...), nil

	case "constrained":
		if len(args) != 2 {
			return nil, rlmerr.SyntaxErrorf("constrained takes (op, term)")
		}
		op, ok := stringLiteral(args[0])
		if !ok {
			if sym, isSym := args[0].symbol(); isSym {
				op = sym
			} else {
				return nil, rlmerr.SyntaxErrorf("constrained op must be a string or symbol")
			}
		}
		child, err := Lower(args[1])
		if err != nil {
			return nil, err
		}
		return Constrained(ConstraintOp(op), child), nil

	default:
		lowered := make([]*Term, 0, len(args))
		for _, a := range args {
			t, err := Lower(a)
			if err != nil {
				return nil, err
			}
			lowered = append(lowered, t)
		}
		return &Term{Kind: KindApp, Name: head, Args: lowered}, nil
	}
}

func stringLiteral(s sexpr) (string, bool) {
	if s.isAtom() && s.str {
		return s.atom, true
	}
	return "", false
}

func intLiteral(s sexpr) (int, error) {
	if !s.isAtom() || s.str {
		return 0, rlmerr.SyntaxErrorf("expected an integer literal")
	}
	n, err := strconv.Atoi(s.atom)
	if err != nil {
		return 0, rlmerr.SyntaxErrorf("expected an integer literal, got %q", s.atom)
	}
	return n, nil
}

func paramList(s sexpr) ([]string, error) {
	if s.isAtom() {
		sym, ok := s.symbol()
		if !ok {
			return nil, rlmerr.SyntaxErrorf("lambda parameter must be a symbol")
		}
		return []string{sym}, nil
	}
	var params []string
	for _, item := range s.list {
		sym, ok := item.symbol()
		if !ok {
			return nil, rlmerr.SyntaxErrorf("lambda parameter must be a symbol")
		}
		params = append(params, sym)
	}
	return params, nil
}
