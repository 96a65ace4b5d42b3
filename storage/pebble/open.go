package pebble

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/hashicorp/go-multierror"

	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/pebble/operation"
)

// StoreVersion is the on-disk layout version written on first open.
const StoreVersion = 1

// DefaultPebbleOptions returns the options used for the node store database.
func DefaultPebbleOptions(cache *pebble.Cache) *pebble.Options {
	opts := &pebble.Options{
		Cache:                       cache,
		FormatMajorVersion:          pebble.FormatNewest,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       1000,
		LBaseMaxBytes:               64 << 20, // 64 MB
		MaxConcurrentCompactions:    func() int { return 4 },
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
	}
	for i := 0; i < len(opts.Levels); i++ {
		l := &opts.Levels[i]
		l.BlockSize = 32 << 10       // 32 KB
		l.IndexBlockSize = 256 << 10 // 256 KB
		l.FilterPolicy = nil
		l.FilterType = pebble.TableFilter
		if i > 0 {
			l.TargetFileSize = opts.Levels[i-1].TargetFileSize * 2
		}
		l.EnsureDefaults()
	}
	return opts
}

// OpenNodeStoreDB opens the pebble database in dir and checks its layout version.
func OpenNodeStoreDB(dir string) (*pebble.DB, error) {
	cache := pebble.NewCache(1 << 20)
	defer cache.Unref()

	db, err := pebble.Open(dir, DefaultPebbleOptions(cache))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = checkVersion(db)
	if err != nil {
		dbErr := db.Close()
		if dbErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to close db: %w", dbErr))
		}
		return nil, err
	}
	return db, nil
}

func checkVersion(db *pebble.DB) error {
	var version uint32
	err := operation.RetrieveStoreVersion(&version)(db)
	if errors.Is(err, storage.ErrNotFound) {
		return operation.InsertStoreVersion(StoreVersion)(db)
	}
	if err != nil {
		return fmt.Errorf("could not read node store version: %w", err)
	}
	if version != StoreVersion {
		return fmt.Errorf("unsupported node store version %d (expected %d)", version, StoreVersion)
	}
	return nil
}
