package nodestore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/badger"
	"github.com/vbc-network/vbcd/storage/inmemory"
	"github.com/vbc-network/vbcd/storage/pebble"
)

const (
	BackendBadger = "badger"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Open creates the node store backend named by backend inside dir.
func Open(ctx context.Context, log zerolog.Logger, collector module.CacheMetrics, backend string, dir string, cacheSize int) (storage.NodeStore, error) {
	switch backend {
	case BackendBadger, "":
		return badger.OpenNodeStore(ctx, log, collector, filepath.Join(dir, "nodes.badger"), uint(cacheSize))
	case BackendPebble:
		return pebble.NewNodeStore(collector, filepath.Join(dir, "nodes.pebble"), cacheSize)
	case BackendMemory:
		return inmemory.NewNodeStore(), nil
	default:
		return nil, fmt.Errorf("unknown node store backend %q", backend)
	}
}

// Import copies every object of src into dst and returns the number of copied objects.
// Objects are written in batches; objects already present in dst are kept.
func Import(log zerolog.Logger, src storage.NodeStore, dst storage.NodeStore, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	log = log.With().Str("from", src.Name()).Str("to", dst.Name()).Logger()
	log.Info().Msg("importing node database")

	batch := make([]*storage.NodeObject, 0, batchSize)
	imported := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := dst.StoreBatch(batch)
		if err != nil {
			return fmt.Errorf("could not store batch: %w", err)
		}
		imported += len(batch)
		if imported%(batchSize*100) < len(batch) {
			log.Info().Int("imported", imported).Msg("node database import progress")
		}
		batch = make([]*storage.NodeObject, 0, batchSize)
		return nil
	}

	err := src.ForEach(func(obj *storage.NodeObject) error {
		batch = append(batch, obj)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return imported, fmt.Errorf("node database import failed: %w", err)
	}
	err = flush()
	if err != nil {
		return imported, fmt.Errorf("node database import failed: %w", err)
	}

	log.Info().Int("imported", imported).Msg("node database import complete")
	return imported, nil
}

// ImportFrom opens the source backend, imports it into dst and closes the source.
func ImportFrom(ctx context.Context, log zerolog.Logger, collector module.CacheMetrics, backend string, dir string, dst storage.NodeStore) (int, error) {
	src, err := Open(ctx, log, collector, backend, dir, 16)
	if err != nil {
		return 0, fmt.Errorf("could not open import source: %w", err)
	}
	defer func() {
		closeErr := src.Close()
		if closeErr != nil {
			log.Warn().Err(closeErr).Msg("could not close import source")
		}
	}()

	return Import(log, src, dst, 256)
}
