package predicate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/rlm/predicate"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

func TestCompileAcceptsSafeEquality(t *testing.T) {
	c, err := predicate.Compile(`item.type == "error"`)
	require.NoError(t, err)
	require.True(t, c.Predicate(map[string]any{"type": "error"}))
	require.False(t, c.Predicate(map[string]any{"type": "info"}))
}

func TestCompileRejectsForbiddenHostAccess(t *testing.T) {
	_, err := predicate.Compile(`require('fs')`)
	require.Error(t, err)
	require.True(t, errors.Is(err, rlmerr.ErrUnsafeExpression))
}

func TestCompileRejectsProcessReference(t *testing.T) {
	_, err := predicate.Compile(`process.exit(1)`)
	require.Error(t, err)
	require.True(t, errors.Is(err, rlmerr.ErrUnsafeExpression))
}

func TestCompileRejectsMalformedSyntax(t *testing.T) {
	_, err := predicate.Compile(`item.foo ===`)
	require.Error(t, err)
	require.True(t, errors.Is(err, rlmerr.ErrSyntaxError))
}

func TestPredicateIsFalseyOnThrow(t *testing.T) {
	c, err := predicate.Compile(`item.missing.deeper`)
	require.NoError(t, err)
	require.False(t, c.Predicate(map[string]any{}))
}

func TestTransformIsNullOnThrow(t *testing.T) {
	c, err := predicate.Compile(`item.missing.deeper`)
	require.NoError(t, err)
	require.Nil(t, c.Transform(map[string]any{}))
}

func TestLowerRecognizesEqualityShape(t *testing.T) {
	l, ok := predicate.Lower(`item.status === 'active'`)
	require.True(t, ok)
	require.Equal(t, "status", l.Field)
	require.Equal(t, "eq", l.Op)
	require.Equal(t, "active", l.Value)
}

func TestLowerRecognizesContainsShape(t *testing.T) {
	l, ok := predicate.Lower(`item.message.includes('timeout')`)
	require.True(t, ok)
	require.Equal(t, "message", l.Field)
	require.Equal(t, "contains", l.Op)
}

func TestLowerRecognizesNumericCompareShape(t *testing.T) {
	l, ok := predicate.Lower(`item.age > 18`)
	require.True(t, ok)
	require.Equal(t, "age", l.Field)
	require.Equal(t, "gt", l.Op)
	require.Equal(t, 18.0, l.Value)
}

func TestLowerReturnsNotOkForUnrecognizedShape(t *testing.T) {
	_, ok := predicate.Lower(`item.a + item.b > 10`)
	require.False(t, ok)
}

func TestLoweringApplyEquality(t *testing.T) {
	l, ok := predicate.Lower(`item.status === 'active'`)
	require.True(t, ok)

	get := func(field string) (any, bool) {
		m := map[string]any{"status": "active"}
		v, ok := m[field]
		return v, ok
	}
	require.True(t, l.Apply(get))
}
