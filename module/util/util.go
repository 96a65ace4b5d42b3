package util

import (
	"context"
)

// CheckClosed reports without blocking whether done is closed.
func CheckClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// WaitError blocks until an error arrives on errChan or ctx is done, and returns the error
// or nil. An error which is already pending when ctx ends is still returned, so a shutdown
// caused by a thrown error is never reported as a clean stop.
func WaitError(ctx context.Context, errChan <-chan error) error {
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
