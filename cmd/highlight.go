package cmd

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlightFragment syntax-highlights an extracted code fragment for the
// live view, picking a lexer by fragment shape since adapter fragments
// arrive as bare text with no filename to match against. Grounded on
// internal/ui/highlight.go's NewHighlighter (lexers.Match + monokai style),
// adapted to lexers.Get by name since there is no file path here.
func highlightFragment(fragment string) string {
	name := "JavaScript"
	if strings.HasPrefix(strings.TrimSpace(fragment), "(") {
		name = "Scheme"
	}
	lexer := lexers.Get(name)
	if lexer == nil {
		return fragment
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, fragment)
	if err != nil {
		return fragment
	}

	var b strings.Builder
	if err := formatters.TTY16m.Format(&b, style, iterator); err != nil {
		return fragment
	}
	return b.String()
}
