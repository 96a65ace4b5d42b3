package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
)

// Fetcher asks peers for ledger nodes. Received nodes are handed back through
// InboundLedgers.GotNode.
type Fetcher interface {
	FetchNodes(ctx context.Context, ledgerHash hash.Hash, seq uint32, nodes []hash.Hash) error
}

// InboundLedgers tracks the ledgers the node is acquiring. A ledger is complete once its
// header and every node of both trees are in the local node store.
type InboundLedgers struct {
	log     zerolog.Logger
	cfg     Config
	family  *statetree.Family
	fetcher Fetcher
	now     func() time.Time

	group     singleflight.Group
	tempNodes *cache.TaggedCache[hash.Hash, *storage.NodeObject]

	mu    sync.Mutex
	items map[hash.Hash]*Item
}

var _ module.Sweepable = (*InboundLedgers)(nil)

// New creates the tracker. fetcher may be nil for a node without peers, in which case
// acquisitions only check the local store.
func New(log zerolog.Logger, collector module.CacheMetrics, family *statetree.Family, fetcher Fetcher, options ...OptionFunc) *InboundLedgers {
	cfg := DefaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	return &InboundLedgers{
		log:       log.With().Str("engine", "inbound_ledgers").Logger(),
		cfg:       cfg,
		family:    family,
		fetcher:   fetcher,
		now:       time.Now,
		tempNodes: cache.NewTaggedCache[hash.Hash, *storage.NodeObject](metrics.ResourceTempNodeCache, collector),
		items:     make(map[hash.Hash]*Item),
	}
}

// Acquire returns the ledger if it is complete locally. Otherwise the acquisition is tracked,
// a request for the missing nodes is sent if one is due, and ErrIncomplete is returned.
// Concurrent calls for the same hash are collapsed into one.
func (e *InboundLedgers) Acquire(ctx context.Context, h hash.Hash, seq uint32, reason Reason) (*ledger.Snapshot, error) {
	if h.IsZero() {
		return nil, fmt.Errorf("cannot acquire ledger with zero hash")
	}

	result, err, _ := e.group.Do(h.String(), func() (interface{}, error) {
		return e.acquire(ctx, h, seq, reason)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ledger.Snapshot), nil
}

func (e *InboundLedgers) acquire(ctx context.Context, h hash.Hash, seq uint32, reason Reason) (*ledger.Snapshot, error) {
	snapshot, err := e.CheckLocal(ctx, h)
	if err == nil {
		e.complete(h)
		return snapshot, nil
	}

	var incomplete ErrIncomplete
	if !errors.As(err, &incomplete) {
		return nil, fmt.Errorf("could not check ledger %v: %w", h, err)
	}
	if incomplete.Seq == 0 {
		incomplete.Seq = seq
	}

	item, due, err := e.track(h, incomplete.Seq, reason, incomplete.Missing)
	if err != nil {
		return nil, err
	}
	if due && e.fetcher != nil {
		err = e.fetcher.FetchNodes(ctx, h, item.LedgerSeq, item.Missing)
		if err != nil {
			e.log.Warn().Err(err).Str("ledger", h.String()).Msg("could not request missing nodes")
		}
	}
	return nil, incomplete
}

// track records the acquisition and returns a copy of its state and whether a request is due.
func (e *InboundLedgers) track(h hash.Hash, seq uint32, reason Reason, missing []hash.Hash) (Item, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	item, ok := e.items[h]
	if !ok {
		item = &Item{
			LedgerHash: h,
			LedgerSeq:  seq,
			Reason:     reason,
			Interval:   e.cfg.RetryInitial,
			Started:    now,
		}
		e.items[h] = item
		e.log.Info().
			Str("ledger", h.String()).
			Uint32("seq", seq).
			Str("reason", reason.String()).
			Int("missing", len(missing)).
			Msg("acquiring ledger")
	}
	if item.LedgerSeq == 0 {
		item.LedgerSeq = seq
	}
	if reason > item.Reason {
		item.Reason = reason
	}
	item.Missing = missing

	if !item.due(now) {
		return *item, false, nil
	}
	if item.Attempts >= e.cfg.RetryAttempts {
		delete(e.items, h)
		return *item, false, fmt.Errorf("ledger %v after %d requests: %w", h, item.Attempts, ErrAbandoned)
	}
	if item.Attempts > 0 {
		item.Interval *= 2
		if item.Interval > e.cfg.RetryMaximum {
			item.Interval = e.cfg.RetryMaximum
		}
	}
	item.Attempts++
	item.Timestamp = now
	return *item, true, nil
}

func (e *InboundLedgers) complete(h hash.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if item, ok := e.items[h]; ok {
		e.log.Info().
			Str("ledger", h.String()).
			Uint32("seq", item.LedgerSeq).
			Dur("duration", e.now().Sub(item.Started)).
			Msg("ledger acquired")
		delete(e.items, h)
	}
}

// CheckLocal loads the ledger from the local node store and verifies that both of its trees
// are complete.
// Expected errors:
//   - ErrIncomplete if the header or any tree node is missing
func (e *InboundLedgers) CheckLocal(ctx context.Context, h hash.Hash) (*ledger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := ledger.FetchHeader(e.family.NodeStore(), h)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrIncomplete{Hash: h, Missing: []hash.Hash{h}}
		}
		return nil, err
	}

	snapshot := ledger.LoadSnapshot(e.family, *info)
	missing, err := snapshot.Walk(e.cfg.MaxMissing)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, ErrIncomplete{Hash: h, Seq: info.Seq, Missing: missing}
	}
	return snapshot, nil
}

// GotNode accepts a node received from a peer. The node is checked against its hash before
// it is stored.
func (e *InboundLedgers) GotNode(obj *storage.NodeObject) error {
	switch obj.Type {
	case storage.ObjectLedger:
		if _, err := ledger.DecodeHeader(obj.Hash, obj.Data); err != nil {
			return fmt.Errorf("received invalid ledger header: %w", err)
		}
	case storage.ObjectAccountNode, storage.ObjectTxNode:
		if _, err := statetree.DecodeNode(obj.Hash, obj.Data); err != nil {
			return fmt.Errorf("received invalid tree node: %w", err)
		}
	default:
		return fmt.Errorf("received node %v of unknown type %d", obj.Hash, obj.Type)
	}

	e.tempNodes.Add(obj.Hash, obj)
	err := e.family.NodeStore().Store(obj)
	if err != nil {
		return fmt.Errorf("could not store received node %v: %w", obj.Hash, err)
	}
	return nil
}

// TempNodeCache holds recently received nodes.
func (e *InboundLedgers) TempNodeCache() *cache.TaggedCache[hash.Hash, *storage.NodeObject] {
	return e.tempNodes
}

// IsPending returns true if the ledger is being acquired.
func (e *InboundLedgers) IsPending(h hash.Hash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.items[h]
	return ok
}

// Pending returns the number of acquisitions in progress.
func (e *InboundLedgers) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Sweep drops acquisitions whose last request is older than the expiry age.
func (e *InboundLedgers) Sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for h, item := range e.items {
		last := item.Timestamp
		if last.IsZero() {
			last = item.Started
		}
		if now.Sub(last) > e.cfg.ExpiryAge {
			e.log.Debug().Str("ledger", h.String()).Msg("dropping stalled acquisition")
			delete(e.items, h)
		}
	}
}
