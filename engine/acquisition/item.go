package acquisition

import (
	"time"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// Reason tells why a ledger is acquired.
type Reason uint8

const (
	// ReasonGeneric is used for repairs of locally incomplete ledgers.
	ReasonGeneric Reason = iota
	// ReasonHistory is used for backfilling older ledgers.
	ReasonHistory
	// ReasonConsensus is used for ledgers consensus needs right now.
	ReasonConsensus
)

func (r Reason) String() string {
	switch r {
	case ReasonGeneric:
		return "generic"
	case ReasonHistory:
		return "history"
	case ReasonConsensus:
		return "consensus"
	default:
		return "unknown"
	}
}

// Item tracks an acquisition in progress.
type Item struct {
	LedgerHash hash.Hash
	LedgerSeq  uint32
	Reason     Reason
	Missing    []hash.Hash
	Attempts   uint
	Timestamp  time.Time
	Interval   time.Duration
	Started    time.Time
}

// due returns true if the next request for the item may be sent.
func (i *Item) due(now time.Time) bool {
	return i.Attempts == 0 || now.Sub(i.Timestamp) >= i.Interval
}
