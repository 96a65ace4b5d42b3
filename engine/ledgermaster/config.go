package ledgermaster

import "time"

const (
	DefaultHistorySize = 256
	DefaultHistoryAge  = 2 * time.Minute
	// DefaultMaxLedgerAge is how old the last published or validated ledger may be for the
	// node to count as caught up.
	DefaultMaxLedgerAge = 3 * time.Minute
)

type Config struct {
	HistorySize  int
	HistoryAge   time.Duration
	MaxLedgerAge time.Duration
	StandAlone   bool
	Now          func() time.Time
}

func DefaultConfig() Config {
	return Config{
		HistorySize:  DefaultHistorySize,
		HistoryAge:   DefaultHistoryAge,
		MaxLedgerAge: DefaultMaxLedgerAge,
		Now:          time.Now,
	}
}

type OptionFunc func(*Config)

// WithHistory sets the size and age of the ledger history cache.
func WithHistory(size int, age time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.HistorySize = size
		cfg.HistoryAge = age
	}
}

// WithStandAlone makes the node count as caught up regardless of ledger ages.
func WithStandAlone(standAlone bool) OptionFunc {
	return func(cfg *Config) {
		cfg.StandAlone = standAlone
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) OptionFunc {
	return func(cfg *Config) {
		cfg.Now = now
	}
}
