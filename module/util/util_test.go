package util_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/module/util"
	"github.com/vbc-network/vbcd/utils/unittest"
)

func TestWithDone(t *testing.T) {
	done := make(chan struct{})
	ctx, cancel := util.WithDone(context.Background(), done)
	defer cancel()
	require.NoError(t, ctx.Err())

	close(done)
	unittest.RequireCloseBefore(t, ctx.Done(), time.Second, "context not cancelled")
	assert.ErrorIs(t, ctx.Err(), util.ErrChannelClosed)
}

func TestWithDone_ParentCancelled(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := util.WithDone(parent, make(chan struct{}))
	defer cancel()

	cancelParent()
	unittest.RequireCloseBefore(t, ctx.Done(), time.Second, "context not cancelled")
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWaitError(t *testing.T) {
	t.Run("error wins over a finished context", func(t *testing.T) {
		errChan := make(chan error, 1)
		errChan <- errors.New("fatal")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.EqualError(t, util.WaitError(ctx, errChan), "fatal")
	})

	t.Run("clean stop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, util.WaitError(ctx, make(chan error)))
	})
}

func TestCheckClosed(t *testing.T) {
	ch := make(chan struct{})
	assert.False(t, util.CheckClosed(ch))
	close(ch)
	assert.True(t, util.CheckClosed(ch))
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := util.LogProgress(unittest.LoggerWithWriter(&buf), "import", 20)
	for i := 0; i < 20; i++ {
		progress(1)
	}
	progress(-5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// the initial line plus one per tenth
	assert.Len(t, lines, 11)
	assert.Contains(t, lines[len(lines)-1], "import progress 100.0%")
}
