package acquisition

import (
	"time"
)

// Config holds the tunables of the inbound ledger tracker.
type Config struct {
	// MaxMissing caps the number of missing nodes collected per local check.
	MaxMissing int
	// RetryInitial is the delay before a request for the same ledger is repeated.
	RetryInitial time.Duration
	// RetryMaximum caps the delay between requests.
	RetryMaximum time.Duration
	// RetryAttempts is the number of requests sent before an acquisition is abandoned.
	RetryAttempts uint
	// ExpiryAge drops acquisitions which made no progress for this long on Sweep.
	ExpiryAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxMissing:    256,
		RetryInitial:  4 * time.Second,
		RetryMaximum:  2 * time.Minute,
		RetryAttempts: 8,
		ExpiryAge:     3 * time.Minute,
	}
}

// OptionFunc is a function that can be provided to the constructor to change the config.
type OptionFunc func(*Config)

// WithMaxMissing sets the cap of missing nodes collected per local check.
func WithMaxMissing(max int) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxMissing = max
	}
}

// WithRetryInitial sets the initial retry delay.
func WithRetryInitial(interval time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryInitial = interval
	}
}

// WithRetryAttempts sets the number of requests per acquisition.
func WithRetryAttempts(attempts uint) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryAttempts = attempts
	}
}

// WithExpiryAge sets the age after which a stalled acquisition is dropped.
func WithExpiryAge(age time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.ExpiryAge = age
	}
}
