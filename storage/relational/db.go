package relational

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vbc-network/vbcd/storage"
)

// Database file names inside the database directory.
const (
	LedgerDBName      = "ledger.db"
	TransactionDBName = "transaction.db"
	WalletDBName      = "wallet.db"
)

// DB is one sqlite database accessed through gorm.
type DB struct {
	log  zerolog.Logger
	path string
	db   *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the given models.
// Opening is retried with backoff since a previous instance may still hold the write lock.
func Open(ctx context.Context, log zerolog.Logger, path string, models ...any) (*DB, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// SQLite pragmas for concurrent access:
	// - journal_mode(WAL): Write-Ahead Logging for concurrent readers/single writer
	// - busy_timeout(5000): Wait up to 5 seconds when database is locked
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	expRetry, err := retry.NewExponential(50 * time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("could not create retry mechanism: %w", err)
	}

	var db *gorm.DB
	err = retry.Do(ctx, retry.WithMaxRetries(3, expRetry), func(ctx context.Context) error {
		var openErr error
		db, openErr = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if openErr != nil {
			log.Warn().Err(openErr).Str("path", path).Msg("could not open database, retrying")
			return retry.RetryableError(openErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	if len(models) > 0 {
		err = db.AutoMigrate(models...)
		if err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	return &DB{
		log:  log.With().Str("database", filepath.Base(path)).Logger(),
		path: path,
		db:   db,
	}, nil
}

// Gorm returns the underlying GORM database connection.
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// Path returns the database file.
func (d *DB) Path() string {
	return d.path
}

// SetCacheSize sets the sqlite page cache size in kibibytes.
func (d *DB) SetCacheSize(kib int) error {
	// a negative cache_size is a size in KiB rather than in pages
	err := d.db.Exec(fmt.Sprintf("PRAGMA cache_size=-%d", kib)).Error
	if err != nil {
		return fmt.Errorf("could not set cache size of %s: %w", d.path, err)
	}
	return nil
}

// CacheSize returns the configured sqlite cache size in kibibytes.
func (d *DB) CacheSize() (int, error) {
	var size int
	err := d.db.Raw("PRAGMA cache_size").Scan(&size).Error
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return -size, nil
	}
	return size, nil
}

// HasColumn reports whether the table of model has the given column.
func (d *DB) HasColumn(model any, column string) bool {
	return d.db.Migrator().HasColumn(model, column)
}

// Close closes the connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

func convertNotFoundError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
