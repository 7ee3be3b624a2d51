package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rlm-runtime/rlm/internal/rlm/adapter"
	"github.com/rlm-runtime/rlm/internal/rlm/checkpoint"
	"github.com/rlm-runtime/rlm/internal/rlm/dsleval"
	"github.com/rlm-runtime/rlm/internal/rlm/registry"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func sortStrings(s []string) { sort.Strings(s) }

// applyResult handles a successfully executed turn's value per
// spec.md §3: a collection (array) result is stored behind a fresh
// handle and bound to RESULTS and _<turn>; a scalar result (number,
// string, bool, nil) bypasses the registry entirely and is only
// reflected in the returned result count. Returns the count the
// success feedback reports.
func (o *Orchestrator) applyResult(ctx context.Context, turn int, value any, bindings checkpoint.Bindings) (int, error) {
	elems, ok := value.([]any)
	if !ok {
		if value == nil {
			return 0, nil
		}
		return 1, nil
	}

	handle, err := o.reg.Create(ctx, elems, elemTypeOf(elems))
	if err != nil {
		return 0, err
	}
	bindings["RESULTS"] = handle
	bindings[fmt.Sprintf("_%d", turn)] = handle
	return len(elems), nil
}

func elemTypeOf(elems []any) string {
	if len(elems) == 0 {
		return "any"
	}
	switch elems[0].(type) {
	case dsleval.GrepHit:
		return "hit"
	case string:
		return "string"
	case float64, int:
		return "number"
	case bool:
		return "bool"
	default:
		return "any"
	}
}

// resolveFinal turns an adapter.FinalAnswer into the text Run returns:
// free text passes through unchanged; a variable reference is resolved
// against bindings and rendered as JSON (spec.md §4.8 step 3).
func (o *Orchestrator) resolveFinal(ctx context.Context, fa adapter.FinalAnswer, bindings checkpoint.Bindings) (string, error) {
	if !fa.IsVar {
		return fa.Text, nil
	}
	h, ok := bindings[fa.VarName]
	if !ok {
		return "", rlmerr.UnboundVariablef("final answer references unbound variable %q", fa.VarName)
	}
	data, err := o.reg.Expand(ctx, h, registry.ExpandOptions{})
	if err != nil {
		return "", fmt.Errorf("resolve final variable %q: %w", fa.VarName, err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("render final variable %q: %w", fa.VarName, err)
	}
	return string(raw), nil
}
