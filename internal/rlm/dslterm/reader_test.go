package dslterm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/rlm/dslterm"
)

func TestReadGrep(t *testing.T) {
	term, err := dslterm.Read(`(grep "ERROR")`)
	require.NoError(t, err)
	require.Equal(t, dslterm.KindGrep, term.Kind)
	require.Equal(t, "ERROR", term.Pattern)
}

func TestReadFilterWithLambda(t *testing.T) {
	term, err := dslterm.Read(`(filter RESULTS (lambda x (match x "timeout" 0)))`)
	require.NoError(t, err)
	require.Equal(t, dslterm.KindApp, term.Kind)
	require.Equal(t, "filter", term.Name)
	require.Len(t, term.Args, 2)
	require.Equal(t, dslterm.KindVar, term.Args[0].Kind)
	require.Equal(t, "RESULTS", term.Args[0].Name)

	lambda := term.Args[1]
	require.Equal(t, dslterm.KindLambda, lambda.Kind)
	require.Equal(t, []string{"x"}, lambda.Params)
	require.Equal(t, dslterm.KindMatch, lambda.Body.Kind)
}

func TestReadMapChainsParseFloatAndMatch(t *testing.T) {
	term, err := dslterm.Read(`(map RESULTS (lambda line (parseFloat (match line "[0-9]+" 0))))`)
	require.NoError(t, err)
	require.Equal(t, "map", term.Name)
	body := term.Args[1].Body
	require.Equal(t, dslterm.KindParseFloat, body.Kind)
	require.Equal(t, dslterm.KindMatch, body.Arg.Kind)
}

func TestReadCountApp(t *testing.T) {
	term, err := dslterm.Read(`(count RESULTS)`)
	require.NoError(t, err)
	require.Equal(t, dslterm.KindApp, term.Kind)
	require.Equal(t, "count", term.Name)
	require.Len(t, term.Args, 1)
}

func TestReadIfTerm(t *testing.T) {
	term, err := dslterm.Read(`(if true 1 2)`)
	require.NoError(t, err)
	require.Equal(t, dslterm.KindIf, term.Kind)
	require.Equal(t, dslterm.KindLit, term.Cond.Kind)
	require.Equal(t, true, term.Cond.Lit)
}

func TestReadClassifyWithDefault(t *testing.T) {
	term, err := dslterm.Read(`(classify line ("error" "bad") ("warn" "meh") "ok")`)
	require.NoError(t, err)
	require.Equal(t, dslterm.KindClassify, term.Kind)
	require.Equal(t, dslterm.KindVar, term.Subject.Kind)
	require.Len(t, term.Cases, 2)
	require.Equal(t, "error", term.Cases[0].Test)
	require.Equal(t, "ok", term.Default.Lit)
}

func TestReadConstrained(t *testing.T) {
	term, err := dslterm.Read(`(constrained "Σ⚡μ" (if true 1 2))`)
	require.NoError(t, err)
	require.Equal(t, dslterm.KindConstrained, term.Kind)
	require.Equal(t, dslterm.SigmaMu, term.Op)
}

func TestReadRejectsUnterminatedList(t *testing.T) {
	_, err := dslterm.Read(`(grep "ERROR"`)
	require.Error(t, err)
}

func TestReadRejectsTrailingInput(t *testing.T) {
	_, err := dslterm.Read(`(grep "ERROR") extra`)
	require.Error(t, err)
}

func TestReadIsStableOnCanonicalFragment(t *testing.T) {
	// Reading the same canonical fragment twice yields structurally
	// identical terms.
	src := `(grep "ERROR")`
	a, err := dslterm.Read(src)
	require.NoError(t, err)
	b, err := dslterm.Read(src)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
