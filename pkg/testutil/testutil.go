// Package testutil provides shared helpers for gridbase tests
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger returns a zap logger that writes through the test's log output
func Logger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// Context returns a context that is canceled when the test ends
func Context(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Ptr returns a pointer to v, convenient for optional scalar arguments
func Ptr[T any](v T) *T {
	return &v
}
