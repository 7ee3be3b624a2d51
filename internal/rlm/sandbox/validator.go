package sandbox

import (
	"regexp"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// deniedMethods are call-form method accesses the synthesis-first
// adapter must never see in a fragment: the agent is expected to reach
// for grep/synthesize_extractor/synthesize_regex instead of hand-rolling
// string parsing (spec.md §4.6). The pattern requires an opening paren
// so a plain property read like `hit.match` (an explicitly typed hit
// object's field) is never flagged — only the call form is forbidden.
var deniedMethods = regexp.MustCompile(`\.(match|replace|split|filter|map|reduce|find|some|every)\s*\(`)

var deniedConstructs = []*regexp.Regexp{
	regexp.MustCompile(`new\s+RegExp\s*\(`),
	regexp.MustCompile(`/(?:[^/\\\n]|\\.)+/[gimsuy]*`), // regex literal
	regexp.MustCompile(`\bprocess\b`),
	regexp.MustCompile(`\brequire\s*\(`),
	regexp.MustCompile(`\bimport\s*\(`),
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`\bFunction\s*\(`),
	regexp.MustCompile(`\bsetTimeout\s*\(|\bsetInterval\s*\(|\bsetImmediate\s*\(`),
	regexp.MustCompile(`__proto__|\bprototype\b|\bconstructor\b`),
	regexp.MustCompile(`\bglobalThis\b`),
}

// Validate runs the syntactic whitelist/deny-list scan spec.md §4.6
// requires before a fragment reaches the runtime. It is a textual
// pre-pass, not a parse: the restricted global environment in Run is
// the actual security boundary, this just forces the agent toward the
// intended synthesis primitives and catches obvious host-escape
// attempts early with a cheap, explainable error.
func Validate(source string) error {
	if loc := deniedMethods.FindString(source); loc != "" {
		return rlmerr.UnsafeExpressionf("disallowed method call %q — use grep/synthesize_extractor/synthesize_regex instead", loc)
	}
	for _, re := range deniedConstructs {
		if loc := re.FindString(source); loc != "" {
			return rlmerr.UnsafeExpressionf("disallowed construct %q", loc)
		}
	}
	return nil
}
