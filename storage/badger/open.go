package badger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/vbc-network/vbcd/module"
)

// OpenNodeStore opens (or creates) a badger backed node store in dir. Opening is retried
// with backoff because a previous instance may still hold the directory lock while it exits.
// The returned store closes the database on Close.
func OpenNodeStore(ctx context.Context, log zerolog.Logger, collector module.CacheMetrics, dir string, cacheSize uint) (*NodeStore, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("could not create node store dir %s: %w", dir, err)
	}

	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)

	expRetry, err := retry.NewExponential(100 * time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("could not create retry mechanism: %w", err)
	}

	var db *badger.DB
	err = retry.Do(ctx, retry.WithMaxRetries(5, expRetry), func(ctx context.Context) error {
		var openErr error
		db, openErr = badger.Open(opts)
		if openErr != nil {
			log.Warn().Err(openErr).Str("dir", dir).Msg("could not open badger node store, retrying")
			return retry.RetryableError(openErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not open badger node store: %w", err)
	}

	store, err := NewNodeStore(collector, db, cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}
