package util

import (
	"context"
	"errors"

	"go.uber.org/atomic"
)

// ErrChannelClosed is returned from Err() when a context returned from WithDone is closed after
// the provided channel is closed.
var ErrChannelClosed = errors.New("channel closed")

// WithDone wraps a signal channel with a context, and cancels the context when the channel is closed.
// When the context is Done, the ctx.Err() will either be ErrChannelClosed if the channel closed first,
// or the error from the underlying context (Canceled, DeadlineExceeded, etc).
func WithDone(parent context.Context, done <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := &doneCtx{Context: ctx, err: atomic.NewError(nil)}
	go func() {
		select {
		case <-done:
			c.err.Store(ErrChannelClosed)
			cancel()
		case <-ctx.Done():
		}
	}()
	return c, cancel
}

type doneCtx struct {
	context.Context
	err *atomic.Error
}

func (c *doneCtx) Err() error {
	if c.Context.Err() == nil {
		return nil
	}
	if err := c.err.Load(); err != nil {
		return err
	}
	return c.Context.Err()
}
