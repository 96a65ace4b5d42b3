package validations

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/storage/relational"
)

// DefaultMaxAge is how long the current validation of a node counts before it goes stale.
const DefaultMaxAge = 5 * time.Minute

// Validation is a signed statement of a validator that it considers a ledger validated.
type Validation struct {
	LedgerHash hash.Hash
	LedgerSeq  uint32
	NodeKey    string
	SignTime   ledger.NetTime
	Raw        []byte

	seen time.Time
}

// Store persists validations.
type Store interface {
	SaveValidation(ctx context.Context, v *relational.Validation) error
}

// Validations keeps the latest validation of every validator. Replaced and expired
// validations are kept as stale until they are flushed to the ledger database.
type Validations struct {
	log    zerolog.Logger
	store  Store
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current map[string]*Validation
	stale   []*Validation
}

var _ module.Sweepable = (*Validations)(nil)

func New(log zerolog.Logger, store Store, maxAge time.Duration) *Validations {
	return &Validations{
		log:     log.With().Str("engine", "validations").Logger(),
		store:   store,
		maxAge:  maxAge,
		now:     time.Now,
		current: make(map[string]*Validation),
	}
}

// Add records the validation. It returns false if the validator already has a validation
// signed at the same time or later.
func (v *Validations) Add(val *Validation) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.current[val.NodeKey]; ok {
		if existing.SignTime >= val.SignTime {
			return false
		}
		v.stale = append(v.stale, existing)
	}
	val.seen = v.now()
	v.current[val.NodeKey] = val
	return true
}

// Count returns how many validators currently validate the ledger.
func (v *Validations) Count(ledgerHash hash.Hash) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := 0
	for _, val := range v.current {
		if val.LedgerHash == ledgerHash {
			n++
		}
	}
	return n
}

// Current returns the number of current validations.
func (v *Validations) Current() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.current)
}

// Stale returns the number of validations waiting to be written.
func (v *Validations) Stale() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.stale)
}

// Sweep moves expired validations to the stale list.
func (v *Validations) Sweep() {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := v.now().Add(-v.maxAge)
	for key, val := range v.current {
		if val.seen.Before(cutoff) {
			v.stale = append(v.stale, val)
			delete(v.current, key)
		}
	}
}

// Flush writes every held validation, current and stale, to the store and forgets them.
// Validations which could not be written are dropped; the combined error is returned.
func (v *Validations) Flush(ctx context.Context) error {
	v.mu.Lock()
	pending := v.stale
	for _, val := range v.current {
		pending = append(pending, val)
	}
	v.stale = nil
	v.current = make(map[string]*Validation)
	v.mu.Unlock()

	if v.store == nil {
		return nil
	}

	var err error
	for _, val := range pending {
		err = multierr.Append(err, v.store.SaveValidation(ctx, &relational.Validation{
			LedgerSeq:  val.LedgerSeq,
			LedgerHash: val.LedgerHash.String(),
			NodePubKey: val.NodeKey,
			SignTime:   uint32(val.SignTime),
			RawData:    val.Raw,
		}))
	}
	v.log.Debug().Int("validations", len(pending)).Msg("flushed validations")
	return err
}
