package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/rlm/extractor"
)

func TestCompileMatchExtractsGroup(t *testing.T) {
	term := extractor.Match(extractor.Input(), `Total: \$([0-9]+)`, 1)
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("Total: $100")
	require.NoError(t, err)
	require.Equal(t, "100", out)
}

func TestCompileParseFloatChainsOverMatch(t *testing.T) {
	term := extractor.ParseFloat(extractor.Match(extractor.Input(), `[0-9]+\.[0-9]+`, 0))
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("latency=12.5ms")
	require.NoError(t, err)
	require.Equal(t, 12.5, out)
}

func TestCompileSliceIsHalfOpen(t *testing.T) {
	term := extractor.Slice(extractor.Input(), 0, 3)
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("hello")
	require.NoError(t, err)
	require.Equal(t, "hel", out)
}

func TestCompileSplitNegativeIndexCountsFromEnd(t *testing.T) {
	term := extractor.Split(extractor.Input(), ",", -1)
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("a,b,c")
	require.NoError(t, err)
	require.Equal(t, "c", out)
}

func TestCompileAddNumbersSums(t *testing.T) {
	term := extractor.Add(extractor.Lit(2.0), extractor.Lit(3.0))
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("unused")
	require.NoError(t, err)
	require.Equal(t, 5.0, out)
}

func TestCompileIfDispatchesOnCondition(t *testing.T) {
	term := extractor.If(extractor.Lit(true), extractor.Lit("yes"), extractor.Lit("no"))
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("unused")
	require.NoError(t, err)
	require.Equal(t, "yes", out)
}

func TestCompileFallsBackToBacktrackingEngineForLookahead(t *testing.T) {
	term := extractor.Match(extractor.Input(), `\d+(?=px)`, 0)
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("width: 480px")
	require.NoError(t, err)
	require.Equal(t, "480", out)
}

func TestCompileRejectsInvalidPattern(t *testing.T) {
	term := extractor.Match(extractor.Input(), `[unterminated`, 0)
	_, err := extractor.Compile(term)
	require.Error(t, err)
}

func TestEscapeMetaNeutralizesRegexSyntax(t *testing.T) {
	escaped := extractor.EscapeMeta("a.b*c")
	term := extractor.Match(extractor.Input(), escaped, 0)
	fn, err := extractor.Compile(term)
	require.NoError(t, err)

	out, err := fn("prefix a.b*c suffix")
	require.NoError(t, err)
	require.Equal(t, "a.b*c", out)
}

func TestInferMatchIsString(t *testing.T) {
	require.Equal(t, extractor.TString, extractor.Infer(extractor.Match(extractor.Input(), ".*", 0)))
}

func TestInferParseFloatIsNumber(t *testing.T) {
	require.Equal(t, extractor.TNumber, extractor.Infer(extractor.ParseFloat(extractor.Input())))
}

func TestInferLitNullIsNull(t *testing.T) {
	require.Equal(t, extractor.TNull, extractor.Infer(extractor.Lit(nil)))
}

func TestInferIfWithDivergentBranchesIsUnknown(t *testing.T) {
	term := extractor.If(extractor.Lit(true), extractor.Lit("a"), extractor.Lit(1.0))
	require.Equal(t, extractor.TUnknown, extractor.Infer(term))
}

func TestCanProduceHasNoFalseNegativeOnWellTypedTerm(t *testing.T) {
	term := extractor.ParseFloat(extractor.Match(extractor.Input(), "[0-9]+", 0))
	require.True(t, extractor.CanProduce(term, extractor.TNumber))
}

func TestCanProduceRejectsMismatchedType(t *testing.T) {
	term := extractor.Match(extractor.Input(), ".*", 0)
	require.False(t, extractor.CanProduce(term, extractor.TNumber))
}

func TestSynthesizeFindsNumericFieldExtractor(t *testing.T) {
	examples := []extractor.Example{
		{Input: "Total: $100", Output: 100.0},
		{Input: "Total: $250", Output: 250.0},
		{Input: "Total: $75", Output: 75.0},
	}
	term, ok := extractor.Synthesize(examples, extractor.TNumber, 3)
	require.True(t, ok)

	fn, err := extractor.Compile(term)
	require.NoError(t, err)
	for _, ex := range examples {
		out, err := fn(ex.Input)
		require.NoError(t, err)
		require.Equal(t, ex.Output, out)
	}
}

func TestSynthesizeFindsDelimitedFieldExtractor(t *testing.T) {
	examples := []extractor.Example{
		{Input: "name=alice", Output: "alice"},
		{Input: "name=bob", Output: "bob"},
	}
	term, ok := extractor.Synthesize(examples, extractor.TString, 2)
	require.True(t, ok)

	fn, err := extractor.Compile(term)
	require.NoError(t, err)
	out, err := fn("name=carol")
	require.NoError(t, err)
	require.Equal(t, "carol", out)
}

func TestSynthesizeReturnsNotOkWhenNoConsistentExtractorExists(t *testing.T) {
	examples := []extractor.Example{
		{Input: "abc", Output: 1.0},
		{Input: "abc", Output: 2.0}, // same input, contradictory outputs: unsatisfiable
	}
	_, ok := extractor.Synthesize(examples, extractor.TNumber, 3)
	require.False(t, ok)
}

func TestSynthesizeFindsCommaGroupedCurrencyExtractor(t *testing.T) {
	examples := []extractor.Example{
		{Input: "Price: $1,234", Output: 1234.0},
		{Input: "Price: $42", Output: 42.0},
	}
	term, ok := extractor.Synthesize(examples, extractor.TNumber, 3)
	require.True(t, ok)

	fn, err := extractor.Compile(term)
	require.NoError(t, err)
	for _, ex := range examples {
		out, err := fn(ex.Input)
		require.NoError(t, err)
		require.Equal(t, ex.Output, out)
	}
}

func TestSynthesizePrefersSmallerTerm(t *testing.T) {
	examples := []extractor.Example{
		{Input: "42", Output: 42.0},
	}
	term, ok := extractor.Synthesize(examples, extractor.TNumber, 3)
	require.True(t, ok)
	// parseFloat(input) is the smallest number-producing term (2 nodes)
	// consistent with a bare numeric string; minimality must pick it
	// over any larger match-wrapped alternative.
	require.Equal(t, 2, extractor.Size(term))
	require.Equal(t, extractor.KindParseFloat, term.Kind)
}
