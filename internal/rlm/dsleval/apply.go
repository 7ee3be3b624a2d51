package dsleval

import (
	"context"

	"github.com/rlm-runtime/rlm/internal/rlm/dslterm"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

var builtins = map[string]bool{
	"filter":      true,
	"map":         true,
	"count":       true,
	"fuzzySearch": true,
	"stats":       true,
}

func (e *Evaluator) evalApp(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	if builtins[t.Name] {
		return e.evalBuiltin(ctx, t, sc)
	}

	fn, err := e.resolveCallable(ctx, t.Name, sc)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(t.Args))
	for _, a := range t.Args {
		v, err := e.eval(ctx, a, sc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return e.applyLambda(ctx, fn, args)
}

func (e *Evaluator) resolveCallable(ctx context.Context, name string, sc scope) (*dslterm.Term, error) {
	v, err := e.resolveVar(ctx, name, sc)
	if err != nil {
		return nil, err
	}
	lambda, ok := v.(*dslterm.Term)
	if !ok || lambda.Kind != dslterm.KindLambda {
		return nil, rlmerr.RuntimeErrorf("%q is not callable", name)
	}
	return lambda, nil
}

func (e *Evaluator) evalBuiltin(ctx context.Context, t *dslterm.Term, sc scope) (any, error) {
	switch t.Name {
	case "filter":
		if len(t.Args) != 2 {
			return nil, rlmerr.RuntimeErrorf("filter takes (collection, lambda)")
		}
		coll, lambda, err := e.collectionAndLambda(ctx, t, sc)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(coll))
		for _, item := range coll {
			result, err := e.applyLambda(ctx, lambda, []any{item})
			if err != nil {
				continue // unhandled lambda error -> null -> treated as false
			}
			if truthy(result) {
				out = append(out, item)
			}
		}
		return out, nil

	case "map":
		if len(t.Args) != 2 {
			return nil, rlmerr.RuntimeErrorf("map takes (collection, lambda)")
		}
		coll, lambda, err := e.collectionAndLambda(ctx, t, sc)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(coll))
		for i, item := range coll {
			result, err := e.applyLambda(ctx, lambda, []any{item})
			if err != nil {
				out[i] = nil
				continue
			}
			out[i] = result
		}
		return out, nil

	case "fuzzySearch":
		if len(t.Args) != 1 {
			return nil, rlmerr.RuntimeErrorf("fuzzySearch takes (query)")
		}
		queryVal, err := e.eval(ctx, t.Args[0], sc)
		if err != nil {
			return nil, err
		}
		query, ok := lineText(queryVal)
		if !ok {
			return nil, rlmerr.RuntimeErrorf("fuzzySearch: query is not a string")
		}
		return e.fuzzySearch(ctx, query)

	case "stats":
		count, err := e.doc.GetLineCount(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"lines": float64(count)}, nil

	case "count":
		if len(t.Args) != 1 {
			return nil, rlmerr.RuntimeErrorf("count takes (collection)")
		}
		v, err := e.eval(ctx, t.Args[0], sc)
		if err != nil {
			return nil, err
		}
		coll, ok := asSlice(v)
		if !ok {
			return nil, rlmerr.RuntimeErrorf("count: argument is not a collection")
		}
		return float64(len(coll)), nil

	default:
		return nil, rlmerr.RuntimeErrorf("unknown builtin %q", t.Name)
	}
}

func (e *Evaluator) collectionAndLambda(ctx context.Context, t *dslterm.Term, sc scope) ([]any, *dslterm.Term, error) {
	collVal, err := e.eval(ctx, t.Args[0], sc)
	if err != nil {
		return nil, nil, err
	}
	coll, ok := asSlice(collVal)
	if !ok {
		return nil, nil, rlmerr.RuntimeErrorf("%s: first argument is not a collection", t.Name)
	}
	lambdaVal, err := e.eval(ctx, t.Args[1], sc)
	if err != nil {
		return nil, nil, err
	}
	lambda, ok := lambdaVal.(*dslterm.Term)
	if !ok || lambda.Kind != dslterm.KindLambda {
		return nil, nil, rlmerr.RuntimeErrorf("%s: second argument is not a lambda", t.Name)
	}
	return coll, lambda, nil
}

func (e *Evaluator) applyLambda(ctx context.Context, lambda *dslterm.Term, args []any) (any, error) {
	if len(args) != len(lambda.Params) {
		return nil, rlmerr.RuntimeErrorf("lambda expects %d argument(s), got %d", len(lambda.Params), len(args))
	}
	inner := make(scope, len(args)+1)
	for i, p := range lambda.Params {
		inner[p] = args[i]
	}
	if len(args) == 1 {
		inner["input"] = args[0]
	}
	return e.eval(ctx, lambda.Body, inner)
}
