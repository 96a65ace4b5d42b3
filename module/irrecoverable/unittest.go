package irrecoverable

import (
	"context"
	"runtime"
	"testing"
)

// MockSignalerContext fails the test on any Throw unless an error is expected, in which case
// thrown errors are delivered on Thrown and the worker goroutine exits.
type MockSignalerContext struct {
	context.Context
	t      testing.TB
	thrown chan error
}

var _ SignalerContext = (*MockSignalerContext)(nil)

func (m *MockSignalerContext) sealed() {}

func (m *MockSignalerContext) Throw(err error) {
	if m.thrown == nil {
		m.t.Fatalf("unexpected irrecoverable error: %v", err)
	}
	select {
	case m.thrown <- err:
	default:
		m.t.Errorf("irrecoverable error thrown twice: %v", err)
	}
	runtime.Goexit()
}

// Thrown delivers the error of an expected Throw. It is nil unless created with
// NewExpectingSignalerContext.
func (m *MockSignalerContext) Thrown() <-chan error {
	return m.thrown
}

func NewMockSignalerContext(t testing.TB, ctx context.Context) *MockSignalerContext {
	return &MockSignalerContext{Context: ctx, t: t}
}

func NewMockSignalerContextWithCancel(t testing.TB, parent context.Context) (*MockSignalerContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	return NewMockSignalerContext(t, ctx), cancel
}

// NewExpectingSignalerContext returns a context for tests in which a worker is expected to
// throw exactly once.
func NewExpectingSignalerContext(t testing.TB, ctx context.Context) *MockSignalerContext {
	return &MockSignalerContext{Context: ctx, t: t, thrown: make(chan error, 1)}
}
