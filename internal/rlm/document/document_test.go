package document_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/store"
)

func newStore(t *testing.T) *document.LineStore {
	t.Helper()
	db, err := store.Open()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return document.New(db)
}

func TestLoadCountsLines(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	n, err := s.Load(ctx, "alpha\nbeta\ngamma")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	count, err := s.GetLineCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestLoadEmptyYieldsZeroLines(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	n, err := s.Load(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	lines, err := s.GetLines(ctx, 0, 10)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestLoadReplacesExistingDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "one\ntwo\nthree")
	require.NoError(t, err)

	n, err := s.Load(ctx, "only")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	lines, err := s.GetLines(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "only", lines[0].Content)
}

func TestGetLinesReturnsOneBasedLineNumbers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "a\nb\nc\nd\ne")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		lines, err := s.GetLines(ctx, i, i)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		require.Equal(t, i, lines[0].LineNum)
	}
}

func TestGetLinesClampsInvertedRangeToEmpty(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "a\nb\nc")
	require.NoError(t, err)

	lines, err := s.GetLines(ctx, 1, 0)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestGetLinesClampsLowBoundUpToOne(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "a\nb\nc")
	require.NoError(t, err)

	lines, err := s.GetLines(ctx, -5, 3)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, 1, lines[0].LineNum)
}

func TestGetLinesClampsHighBoundToDocumentLength(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "a\nb\nc")
	require.NoError(t, err)

	lines, err := s.GetLines(ctx, 2, 1000)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, 2, lines[0].LineNum)
	require.Equal(t, 3, lines[1].LineNum)
}

func TestSearchFindsMatchingLines(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "the quick fox\na lazy dog\nanother fox sighting")
	require.NoError(t, err)

	lines, err := s.Search(ctx, "fox")
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestSearchOnMalformedQueryReturnsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "alpha beta")
	require.NoError(t, err)

	lines, err := s.Search(ctx, `"unterminated`)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSearchOnEmptyQueryReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "alpha beta")
	require.NoError(t, err)

	lines, err := s.Search(ctx, "   ")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestClearEmptiesDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Load(ctx, "a\nb\nc")
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))

	count, err := s.GetLineCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
