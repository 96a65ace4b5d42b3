package cmd

import (
	"errors"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/bootstrap"
)

// Process exit codes by failure class.
const (
	ExitSuccess = 0
	// ExitConfig is used for an invalid configuration.
	ExitConfig = 1
	// ExitSetup is used when the stores cannot be opened or a setup observer fails.
	ExitSetup = 3
	// ExitLoadFailure is used when no start-up ledger could be established.
	ExitLoadFailure = 255
)

// ExitError carries the exit code the process should terminate with.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit %d: %v", e.Code, e.Err)
}

func (e ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// ExitCode maps the error returned by Setup or Run to the process exit code.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, bootstrap.ErrDumpComplete) {
		return ExitSuccess
	}
	var exit ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	// configuration errors and unclassified failures
	return ExitConfig
}
