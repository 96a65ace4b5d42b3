package bootstrap

import (
	"errors"
	"fmt"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
)

var (
	// ErrLedgerNotFound is returned when the start ledger cannot be resolved to any ledger.
	ErrLedgerNotFound = errors.New("ledger not found")

	// ErrEmptyLedger is returned for a ledger without account state.
	ErrEmptyLedger = errors.New("ledger is empty")

	// ErrInvalidIdentifier is returned when the start ledger is neither a hash, a sequence nor
	// "latest".
	ErrInvalidIdentifier = errors.New("invalid ledger identifier")

	// ErrInvalidFile is returned when a ledger file cannot be read or has the wrong shape.
	ErrInvalidFile = errors.New("invalid ledger file")

	// ErrNotSane is returned when a loaded ledger fails its structural check.
	ErrNotSane = ledger.ErrNotSane

	// ErrDumpComplete is returned after a node dump. The process is expected to exit cleanly.
	ErrDumpComplete = errors.New("node dump complete")
)

// ErrMissingNodes is returned when a ledger cannot be walked completely.
type ErrMissingNodes struct {
	Seq     uint32
	Missing []hash.Hash
}

func (e ErrMissingNodes) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("ledger %d is missing nodes", e.Seq)
	}
	return fmt.Sprintf("ledger %d is missing %d node(s), first %v", e.Seq, len(e.Missing), e.Missing[0])
}

// Is matches any ErrMissingNodes.
func (e ErrMissingNodes) Is(other error) bool {
	_, ok := other.(ErrMissingNodes)
	return ok
}

// ErrHashMismatch is returned when the loaded ledger does not hash to the expected value.
type ErrHashMismatch struct {
	Expected hash.Hash
	Actual   hash.Hash
}

func (e ErrHashMismatch) Error() string {
	return fmt.Sprintf("ledger hash %v does not match expected %v", e.Actual, e.Expected)
}

// Is matches any ErrHashMismatch.
func (e ErrHashMismatch) Is(other error) bool {
	_, ok := other.(ErrHashMismatch)
	return ok
}
