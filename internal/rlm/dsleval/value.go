// Package dsleval implements the DSL Evaluator (spec.md §4.5): a
// tree-walking, eager, left-to-right, single-threaded interpreter for
// LCTerm over document lines, the handle registry, and lambda scopes.
// Grounded on the teacher's internal/llm Engine turn-processing shape
// (internal/llm/engine.go) for the surrounding control flow idiom —
// bounded iteration with explicit error propagation rather than panics —
// adapted here to a pure expression evaluator.
package dsleval

import "fmt"

// GrepHit is one regex match produced by grep(pattern), matching
// spec.md §4.5's `{match, line, lineNum, index, groups}` shape.
type GrepHit struct {
	Match   string   `json:"match"`
	Line    string   `json:"line"`
	LineNum int      `json:"lineNum"`
	Index   int      `json:"index"`
	Groups  []string `json:"groups"`
}

// lineText extracts the text an evaluator operation like match/classify
// should run against, unwrapping the shapes grep/map/filter commonly
// pass through a lambda: a raw string, a GrepHit's matched line, or a
// decoded JSON object's "content" (else "line") string field.
func lineText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case GrepHit:
		return x.Line, true
	case *GrepHit:
		return x.Line, true
	case map[string]any:
		if content, ok := x["content"]; ok {
			if s, ok := content.(string); ok {
				return s, true
			}
		}
		if line, ok := x["line"]; ok {
			if s, ok := line.(string); ok {
				return s, true
			}
		}
	}
	return "", false
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
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func formatValue(v any) string {
	return fmt.Sprintf("%v", v)
}
