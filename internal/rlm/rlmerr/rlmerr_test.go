package rlmerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
)

func TestErrorsIsClassifiesByKind(t *testing.T) {
	err := rlmerr.InvalidHandlef("unknown handle %q", "$res9")
	require.True(t, errors.Is(err, rlmerr.ErrInvalidHandle))
	require.False(t, errors.Is(err, rlmerr.ErrTimeout))
}

func TestKindOfRecoversKindThroughWrapping(t *testing.T) {
	inner := rlmerr.UnboundVariablef("x")
	wrapped := fmt.Errorf("evaluate: %w", inner)

	kind, ok := rlmerr.KindOf(wrapped)
	require.True(t, ok)
	require.Equal(t, rlmerr.KindUnboundVariable, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := rlmerr.KindOf(errors.New("plain"))
	require.False(t, ok)
}
