package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// RequireReturnsBefore fails the test unless f returns within duration.
func RequireReturnsBefore(t testing.TB, f func(), duration time.Duration, message string) {
	done := make(chan struct{})
	go func() {
		f()
		close(done)
	}()
	RequireCloseBefore(t, done, duration, message)
}

// RequireCloseBefore fails the test unless c closes within duration.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-c:
	case <-timer.C:
		require.Fail(t, "timed out: "+message)
	}
}

// RequireClosed fails the test unless c is already closed.
func RequireClosed(t testing.TB, c <-chan struct{}, message string) {
	select {
	case <-c:
	default:
		require.Fail(t, "channel is open: "+message)
	}
}

// RequireNotClosed fails the test if c is already closed.
func RequireNotClosed(t testing.TB, c <-chan struct{}, message string) {
	select {
	case <-c:
		require.Fail(t, "channel is closed: "+message)
	default:
	}
}

// RunWithTempDir runs f with a fresh directory which is removed afterwards.
func RunWithTempDir(t testing.TB, f func(dir string)) {
	dir, err := os.MkdirTemp("", "vbcd-test-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	f(dir)
}

// RunWithBadgerDB runs f with a badger database in a temporary directory.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db, err := badger.Open(badger.DefaultOptions(dir).WithKeepL0InMemory(true).WithLogger(nil))
		require.NoError(t, err)
		defer db.Close()
		f(db)
	})
}
