package acquisition

import (
	"errors"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// ErrIncomplete is returned when the ledger is not fully present in the local node store.
type ErrIncomplete struct {
	Hash    hash.Hash
	Seq     uint32
	Missing []hash.Hash
}

func (e ErrIncomplete) Error() string {
	return fmt.Sprintf("ledger %v (seq %d) is incomplete, %d nodes missing", e.Hash, e.Seq, len(e.Missing))
}

// Is matches any ErrIncomplete.
func (e ErrIncomplete) Is(other error) bool {
	_, ok := other.(ErrIncomplete)
	return ok
}

// IsIncomplete returns whether err is an ErrIncomplete.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete{})
}

// ErrAbandoned is returned for acquisitions which used up their request attempts.
var ErrAbandoned = errors.New("acquisition abandoned")
