package ledgermaster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
)

// Reasons reported by IsCaughtUp.
const (
	ReasonNoPublished = "No recently-published ledger"
	ReasonNoValidated = "No recently-validated ledger"
)

// LedgerIndex is the relational index of ledger headers.
type LedgerIndex interface {
	Save(ctx context.Context, info *ledger.Info) error
	HashBySeq(ctx context.Context, seq uint32) (hash.Hash, error)
}

// LedgerMaster tracks the node's view of the ledger chain: the last closed ledger, the last
// validated and published ledgers, recently used ledgers and the ranges of complete ledgers
// held locally.
type LedgerMaster struct {
	log   zerolog.Logger
	cfg   Config
	index LedgerIndex
	open  *OpenLedger

	history  *cache.TaggedCache[hash.Hash, *ledger.Snapshot]
	accepted *cache.TaggedCache[hash.Hash, *ledger.Snapshot]

	mu            sync.RWMutex
	bySeq         map[uint32]hash.Hash
	closed        *ledger.Snapshot
	validated     *ledger.Snapshot
	published     *ledger.Snapshot
	validatedTime time.Time
	publishedTime time.Time
	complete      RangeSet
	replay        *ledger.ReplayPackage
}

var _ module.Sweepable = (*LedgerMaster)(nil)

func New(log zerolog.Logger, collector module.CacheMetrics, index LedgerIndex, options ...OptionFunc) *LedgerMaster {
	cfg := DefaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	return &LedgerMaster{
		log:   log.With().Str("engine", "ledger_master").Logger(),
		cfg:   cfg,
		index: index,
		open:  NewOpenLedger(),
		history: cache.NewTaggedCache[hash.Hash, *ledger.Snapshot](metrics.ResourceLedgerHistory, collector,
			cache.WithTargetSize(cfg.HistorySize), cache.WithTargetAge(cfg.HistoryAge), cache.WithClock(cfg.Now)),
		accepted: cache.NewTaggedCache[hash.Hash, *ledger.Snapshot](metrics.ResourceAcceptedLedgers, collector,
			cache.WithTargetSize(cfg.HistorySize), cache.WithTargetAge(cfg.HistoryAge), cache.WithClock(cfg.Now)),
		bySeq: make(map[uint32]hash.Hash),
	}
}

// OpenLedger returns the holder of the open view.
func (m *LedgerMaster) OpenLedger() *OpenLedger {
	return m.open
}

// SwitchLCL makes the snapshot the last closed ledger. It must be immutable.
func (m *LedgerMaster) SwitchLCL(s *ledger.Snapshot) error {
	if !s.IsImmutable() {
		return fmt.Errorf("last closed ledger %d must be immutable", s.Seq())
	}
	m.StoreLedger(s)

	m.mu.Lock()
	m.closed = s
	m.mu.Unlock()

	m.log.Info().Uint32("seq", s.Seq()).Str("hash", s.Hash().String()).Msg("switched last closed ledger")
	return nil
}

// ClosedLedger returns the last closed ledger, or nil.
func (m *LedgerMaster) ClosedLedger() *ledger.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// ForceValid marks the snapshot validated and makes it the validated ledger.
func (m *LedgerMaster) ForceValid(s *ledger.Snapshot) {
	s.SetValidated()
	m.StoreLedger(s)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validated == nil || s.Seq() >= m.validated.Seq() {
		m.validated = s
		m.validatedTime = m.cfg.Now()
	}
}

// ValidatedLedger returns the last validated ledger, or nil.
func (m *LedgerMaster) ValidatedLedger() *ledger.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validated
}

// SetPublished records the snapshot as the last ledger published to clients.
func (m *LedgerMaster) SetPublished(s *ledger.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = s
	m.publishedTime = m.cfg.Now()
}

// PublishedLedger returns the last published ledger, or nil.
func (m *LedgerMaster) PublishedLedger() *ledger.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published
}

// StoreLedger adds the snapshot to the ledger history. It returns false if it was already held.
func (m *LedgerMaster) StoreLedger(s *ledger.Snapshot) bool {
	h := s.Hash()
	known := m.history.Has(h)
	m.history.Add(h, s)

	m.mu.Lock()
	m.bySeq[s.Seq()] = h
	m.mu.Unlock()
	return !known
}

// SaveValidated writes the snapshot's nodes to the node store and its header to the ledger
// index, then marks its sequence as present.
func (m *LedgerMaster) SaveValidated(ctx context.Context, s *ledger.Snapshot) error {
	if _, err := s.Flush(); err != nil {
		return fmt.Errorf("could not flush ledger %d: %w", s.Seq(), err)
	}
	info := s.Info()
	if err := m.index.Save(ctx, &info); err != nil {
		return fmt.Errorf("could not index ledger %d: %w", s.Seq(), err)
	}
	m.StoreLedger(s)
	m.SetLedgerRangePresent(s.Seq(), s.Seq())
	return nil
}

// AddAccepted caches a ledger accepted by consensus.
func (m *LedgerMaster) AddAccepted(s *ledger.Snapshot) {
	m.accepted.Add(s.Hash(), s)
}

// AcceptedLedger returns a cached accepted ledger.
func (m *LedgerMaster) AcceptedLedger(h hash.Hash) (*ledger.Snapshot, bool) {
	return m.accepted.Get(h)
}

// AcceptedLedgers is the cache of accepted ledgers.
func (m *LedgerMaster) AcceptedLedgers() *cache.TaggedCache[hash.Hash, *ledger.Snapshot] {
	return m.accepted
}

// LedgerByHash returns a ledger from the history.
func (m *LedgerMaster) LedgerByHash(h hash.Hash) (*ledger.Snapshot, bool) {
	return m.history.Get(h)
}

// LedgerBySeq returns a ledger from the history.
func (m *LedgerMaster) LedgerBySeq(seq uint32) (*ledger.Snapshot, bool) {
	m.mu.RLock()
	h, ok := m.bySeq[seq]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.history.Get(h)
}

// HashBySeq returns the hash of the ledger with the given sequence, from the history or else
// from the ledger index.
// Expected errors:
//   - storage.ErrNotFound if the sequence is unknown
func (m *LedgerMaster) HashBySeq(ctx context.Context, seq uint32) (hash.Hash, error) {
	m.mu.RLock()
	h, ok := m.bySeq[seq]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}
	if m.index == nil {
		return hash.ZeroHash, storage.ErrNotFound
	}
	return m.index.HashBySeq(ctx, seq)
}

// SetLedgerRangePresent records that every ledger in [min, max] is complete locally.
func (m *LedgerMaster) SetLedgerRangePresent(min, max uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complete.Insert(min, max)
}

// ClearLedger records that the ledger is no longer complete locally.
func (m *LedgerMaster) ClearLedger(seq uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complete.Remove(seq)
}

// HaveLedger reports whether the ledger is complete locally.
func (m *LedgerMaster) HaveLedger(seq uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.complete.Contains(seq)
}

// CompleteLedgers renders the locally complete ranges, e.g. "1-5,7".
func (m *LedgerMaster) CompleteLedgers() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.complete.String()
}

// IsCaughtUp reports whether recent ledgers were published and validated. When it is not,
// the reason is returned.
func (m *LedgerMaster) IsCaughtUp() (bool, string) {
	if m.cfg.StandAlone {
		return true, ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.cfg.Now()
	if m.published == nil || now.Sub(m.publishedTime) > m.cfg.MaxLedgerAge {
		return false, ReasonNoPublished
	}
	if m.validated == nil || now.Sub(m.validatedTime) > m.cfg.MaxLedgerAge {
		return false, ReasonNoValidated
	}
	return true, ""
}

// TakeReplay installs the package for the next consensus round.
func (m *LedgerMaster) TakeReplay(pkg *ledger.ReplayPackage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replay = pkg
}

// ReleaseReplay hands out the installed package once.
func (m *LedgerMaster) ReleaseReplay() *ledger.ReplayPackage {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg := m.replay
	m.replay = nil
	return pkg
}

// Tune sets the size and age of the ledger history.
func (m *LedgerMaster) Tune(size int, age time.Duration) {
	m.history.SetTargetSize(size)
	m.history.SetTargetAge(age)
	m.accepted.SetTargetSize(size)
	m.accepted.SetTargetAge(age)
}

// Sweep expires old ledgers from the history. The last closed, validated and published
// ledgers stay addressable by sequence.
func (m *LedgerMaster) Sweep() {
	m.history.Sweep()

	m.mu.Lock()
	defer m.mu.Unlock()
	pinned := make(map[hash.Hash]*ledger.Snapshot)
	for _, s := range []*ledger.Snapshot{m.closed, m.validated, m.published} {
		if s != nil {
			pinned[s.Hash()] = s
		}
	}
	for seq, h := range m.bySeq {
		if m.history.Has(h) {
			continue
		}
		if s, ok := pinned[h]; ok {
			m.history.Add(h, s)
			continue
		}
		delete(m.bySeq, seq)
	}
}

// SweepAccepted expires old accepted ledgers.
func (m *LedgerMaster) SweepAccepted() {
	m.accepted.Sweep()
}
