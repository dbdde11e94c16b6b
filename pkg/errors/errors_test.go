package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(ErrorTypeNotFound, "table 7 not found")
	assert.Equal(t, "not_found: table 7 not found", err.Error())
	assert.NotEmpty(t, err.Stack)

	err = Newf(ErrorTypeInvalidArgument, "position %d out of range", 9)
	assert.Equal(t, "invalid_argument: position 9 out of range", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrorTypeStorage, "failed to query cells")

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(nil, ErrorTypeStorage, "ignored"))
}

func TestWrapKeepsInnerStack(t *testing.T) {
	inner := New(ErrorTypeNotFound, "row 3 not found")
	outer := Wrap(inner, ErrorTypeStorage, "lookup failed")
	assert.Equal(t, inner.Stack, outer.Stack)
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeConflict, "table 1 is busy")
	assert.True(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(err, ErrorTypeNotFound))

	// Works through wrapping, including fmt
	wrapped := fmt.Errorf("while adding column: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeConflict))

	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeConflict))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeConflict, "busy")))
	assert.False(t, IsRetryable(New(ErrorTypeNotFound, "gone")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeDecode, TypeOf(New(ErrorTypeDecode, "not numeric")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeNotFound, "cell not found").
		WithDetail("row_id", int64(4)).
		WithDetail("column_id", int64(2))
	require.NotNil(t, err.Details)
	assert.Equal(t, int64(4), err.Details["row_id"])
	assert.Equal(t, int64(2), err.Details["column_id"])
}
