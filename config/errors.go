package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates that the loaded configuration failed validation.
type ErrInvalidConfig struct {
	err error
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Errorf("invalid node configuration: %w", e.err).Error()
}

func (e ErrInvalidConfig) Unwrap() error {
	return e.err
}

// NewInvalidConfigErr wraps the validation failure.
func NewInvalidConfigErr(err error) ErrInvalidConfig {
	return ErrInvalidConfig{err: err}
}

// IsErrInvalidConfig returns whether an error is ErrInvalidConfig.
func IsErrInvalidConfig(err error) bool {
	var e ErrInvalidConfig
	return errors.As(err, &e)
}
