package extractor

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

// matcher is the narrow surface extractor needs from either regex
// engine: a single-shot "find and return submatches" call.
type matcher interface {
	find(s string) (groups []string, ok bool)
}

type re2Matcher struct{ re *regexp.Regexp }

func (m re2Matcher) find(s string) ([]string, bool) {
	g := m.re.FindStringSubmatch(s)
	if g == nil {
		return nil, false
	}
	return g, true
}

type backtrackMatcher struct{ re *regexp2.Regexp }

func (m backtrackMatcher) find(s string) ([]string, bool) {
	match, err := m.re.FindStringMatch(s)
	if err != nil || match == nil {
		return nil, false
	}
	groups := match.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.String()
	}
	return out, true
}

// needsBacktracking reports whether a pattern uses a construct RE2
// structurally cannot express (lookaround, backreferences).
func needsBacktracking(pattern string) bool {
	for _, marker := range []string{`(?=`, `(?!`, `(?<=`, `(?<!`} {
		if strings.Contains(pattern, marker) {
			return true
		}
	}
	for i := 0; i < len(pattern)-1; i++ {
		if pattern[i] == '\\' && pattern[i+1] >= '1' && pattern[i+1] <= '9' {
			return true
		}
	}
	return false
}

// compileMatcher compiles pattern with Go's RE2 engine. Patterns with
// lookaround or backreferences go straight to dlclark/regexp2's
// backtracking engine, and so does any other pattern RE2 rejects but
// regexp2 accepts (spec.md §4.4).
func compileMatcher(pattern string) (matcher, error) {
	if !needsBacktracking(pattern) {
		re, err := regexp.Compile(pattern)
		if err == nil {
			return re2Matcher{re}, nil
		}
		if _, err2 := regexp2.Compile(pattern, regexp2.None); err2 != nil {
			return nil, rlmerr.SyntaxErrorf("extractor: invalid pattern %q: %s", pattern, err)
		}
	}
	re2, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, rlmerr.SyntaxErrorf("extractor: invalid pattern %q: %s", pattern, err)
	}
	return backtrackMatcher{re2}, nil
}
