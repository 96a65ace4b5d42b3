package ledger

import (
	"errors"

	"github.com/vbc-network/vbcd/ledger/statetree"
)

var (
	// ErrImmutable is returned by every mutation of a snapshot set immutable.
	ErrImmutable = statetree.ErrImmutable

	// ErrHashMismatch is returned when content does not hash to the expected value.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrNotSane is returned by AssertSane when a snapshot's header and trees disagree.
	ErrNotSane = errors.New("ledger is not sane")

	// ErrInvalidEntry is returned for ledger entries that cannot be parsed.
	ErrInvalidEntry = errors.New("invalid ledger entry")

	// ErrInvalidTransaction is returned for transaction blobs that cannot be parsed.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrDuplicateTransaction is returned when a transaction is inserted twice into an open view.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)
