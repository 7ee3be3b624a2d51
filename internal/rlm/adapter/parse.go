package adapter

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var (
	delimitedRe = regexp.MustCompile(`(?s)<<<FINAL>>>(.*?)<<<END>>>`)
	finalVarRe  = regexp.MustCompile(`FINAL_VAR\(\s*([A-Za-z_][A-Za-z0-9_]*|\$res\d+)\s*\)`)
	fencedRe    = regexp.MustCompile("(?s)```([A-Za-z]*)\\n(.*?)```")
)

// jsonFallbackFields is the field set spec.md §6 names for the
// structured-JSON final-answer fallback.
var jsonFallbackFields = []string{"summary", "response", "answer", "total", "result", "value", "count", "sum"}

// extractFinalAnswer implements the shared precedence rule across both
// adapters: `<<<FINAL>>>...<<<END>>>` beats `FINAL_VAR(name)` beats the
// JSON fallback (spec.md §6).
func extractFinalAnswer(response string) (FinalAnswer, bool) {
	if m := delimitedRe.FindStringSubmatch(response); m != nil {
		return FinalAnswer{Text: strings.TrimSpace(m[1])}, true
	}
	if m := finalVarRe.FindStringSubmatch(response); m != nil {
		return FinalAnswer{IsVar: true, VarName: m[1]}, true
	}
	if text, ok := jsonFallback(response); ok {
		return FinalAnswer{Text: text}, true
	}
	return FinalAnswer{}, false
}

// jsonFallback looks for a top-level JSON object anywhere in response
// and, if one of jsonFallbackFields is present, returns the value of
// the lexicographically smallest matching field name (normalized by
// lowercasing and stripping underscores, per DESIGN.md's Open Question
// decision) rendered as a string.
func jsonFallback(response string) (string, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(response[start:end+1]), &obj); err != nil {
		return "", false
	}

	normalized := make(map[string]string, len(jsonFallbackFields))
	for _, f := range jsonFallbackFields {
		normalized[f] = f
	}

	var matched []string
	for key := range obj {
		if _, ok := normalized[normalize(key)]; ok {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return "", false
	}
	sort.Slice(matched, func(i, j int) bool { return normalize(matched[i]) < normalize(matched[j]) })
	return renderValue(obj[matched[0]]), true
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func renderValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// extractFencedCode returns the first fenced block whose language tag
// is in langs, case-insensitively.
func extractFencedCode(response string, langs ...string) (string, bool) {
	want := make(map[string]bool, len(langs))
	for _, l := range langs {
		want[strings.ToLower(l)] = true
	}
	for _, m := range fencedRe.FindAllStringSubmatch(response, -1) {
		if want[strings.ToLower(m[1])] {
			return strings.TrimSpace(m[2]), true
		}
	}
	return "", false
}
