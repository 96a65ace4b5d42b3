package component_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/component"
	"github.com/vbc-network/vbcd/module/irrecoverable"
	"github.com/vbc-network/vbcd/utils/unittest"
)

func blockingWorker(release <-chan struct{}) component.ComponentWorker {
	return func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		ready()
		select {
		case <-ctx.Done():
		case <-release:
		}
	}
}

func TestComponentManager_ReadyAndDone(t *testing.T) {
	release := make(chan struct{})
	cm := component.NewComponentManagerBuilder().
		AddWorker("first", blockingWorker(nil)).
		AddWorker("second", blockingWorker(release)).
		Build()

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()
	cm.Start(ctx)

	unittest.RequireCloseBefore(t, cm.Ready(), time.Second, "workers not ready")
	assert.Equal(t, []string{"first", "second"}, cm.Pending())

	close(release)
	require.Eventually(t, func() bool {
		pending := cm.Pending()
		return len(pending) == 1 && pending[0] == "first"
	}, time.Second, 10*time.Millisecond)
	unittest.RequireNotClosed(t, cm.Done(), "done before every worker returned")

	cancel()
	unittest.RequireCloseBefore(t, cm.ShutdownSignal(), time.Second, "no shutdown signal")
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "workers did not stop")
	assert.Empty(t, cm.Pending())
}

func TestComponentManager_ThrowCancelsWorkers(t *testing.T) {
	failure := errors.New("corrupt store")
	cm := component.NewComponentManagerBuilder().
		AddWorker("healthy", blockingWorker(nil)).
		AddWorker("faulty", func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			ctx.Throw(failure)
		}).
		Build()

	ctx := irrecoverable.NewExpectingSignalerContext(t, context.Background())
	cm.Start(ctx)

	select {
	case err := <-ctx.Thrown():
		assert.ErrorIs(t, err, failure)
	case <-time.After(time.Second):
		t.Fatal("error was not propagated")
	}
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "healthy worker not cancelled")
}

func TestComponentManager_StartTwice(t *testing.T) {
	cm := component.NewComponentManagerBuilder().
		AddWorker("noop", blockingWorker(nil)).
		Build()
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()

	cm.Start(ctx)
	assert.PanicsWithValue(t, module.ErrMultipleStartup, func() {
		cm.Start(ctx)
	})
}
