package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestInvalidRequest(t *testing.T) {
	err := NewInvalidRequestError("missing field %q", "csv")
	require.Error(t, err)
	assert.True(t, IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), `missing field "csv"`)
	assert.False(t, IsInvalidRequestError(nil))
}

func TestHints(t *testing.T) {
	err := WithHint(New("bad delimiter"), "try --delimiter ';'")
	assert.Equal(t, []string{"try --delimiter ';'"}, GetAllHints(err))
}
