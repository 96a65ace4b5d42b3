package recovery

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/engine/acquisition"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/component"
	"github.com/vbc-network/vbcd/module/irrecoverable"
	"github.com/vbc-network/vbcd/storage"
)

// LedgerIndex resolves a ledger sequence to its hash.
type LedgerIndex interface {
	HashBySeq(ctx context.Context, seq uint32) (hash.Hash, error)
}

// Acquirer fetches a ledger and all of its nodes.
type Acquirer interface {
	Acquire(ctx context.Context, h hash.Hash, seq uint32, reason acquisition.Reason) (*ledger.Snapshot, error)
}

// Coordinator turns missing node reports into ledger acquisitions. At most one recovery loop
// runs at a time. Reports arriving while it runs only raise the loop's target sequence, so a
// burst of reports collapses into acquiring the newest affected ledger.
//
// By default the loop runs on a worker of the component and reports never block. With
// WithInline the first report runs the loop on the reporting goroutine.
type Coordinator struct {
	component.Component

	log      zerolog.Logger
	metrics  module.RecoveryMetrics
	index    LedgerIndex
	acquirer Acquirer
	inline   bool
	notifier module.Notifier

	mu     sync.Mutex
	target uint32
	active bool
}

var _ statetree.MissingNodeHandler = (*Coordinator)(nil)

type Option func(*Coordinator)

// WithInline runs the recovery loop on the goroutine reporting the first missing node.
func WithInline() Option {
	return func(c *Coordinator) {
		c.inline = true
	}
}

func New(log zerolog.Logger, collector module.RecoveryMetrics, index LedgerIndex, acquirer Acquirer, options ...Option) *Coordinator {
	c := &Coordinator{
		log:      log.With().Str("engine", "missing_node_recovery").Logger(),
		metrics:  collector,
		index:    index,
		acquirer: acquirer,
		notifier: module.NewNotifier(),
	}
	for _, option := range options {
		option(c)
	}

	c.Component = component.NewComponentManagerBuilder().
		AddWorker("process loop", c.processLoop).
		Build()
	return c
}

// MissingNode reports that a node of the ledger with the given sequence is missing.
func (c *Coordinator) MissingNode(seq uint32) {
	c.metrics.MissingNodeBySeq()
	if !c.claim(seq) {
		return
	}
	if c.inline {
		c.drain(context.Background())
		return
	}
	c.notifier.Notify()
}

// RunInline reports the missing node and, if no loop is running, runs the loop on the
// calling goroutine until the target no longer changes. It returns at once if another loop
// owns the target.
func (c *Coordinator) RunInline(ctx context.Context, seq uint32) {
	c.metrics.MissingNodeBySeq()
	if !c.claim(seq) {
		return
	}
	c.drain(ctx)
}

// MissingNodeHash reports a missing node of a ledger whose sequence is unknown. The ledger
// is acquired directly.
func (c *Coordinator) MissingNodeHash(h hash.Hash) {
	c.metrics.MissingNodeByHash()
	if h.IsZero() {
		return
	}
	c.log.Warn().Str("ledger", h.String()).Msg("missing node in ledger")
	c.request(context.Background(), h, 0)
}

// Active reports whether a recovery loop owns the target.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// claim raises the target and returns true if the caller became the loop owner.
func (c *Coordinator) claim(seq uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		if seq > c.target {
			c.target = seq
		}
		return false
	}
	c.active = true
	c.target = seq
	c.metrics.RecoveryLoopStarted()
	return true
}

func (c *Coordinator) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notifier.Channel():
			c.drain(ctx)
		}
	}
}

// drain acquires the target ledger until no higher target was reported meanwhile. The lock
// is never held while acquiring.
func (c *Coordinator) drain(ctx context.Context) {
	c.mu.Lock()
	seq := c.target
	c.mu.Unlock()

	for {
		if ctx.Err() == nil {
			c.acquireBySeq(ctx, seq)
		}

		c.mu.Lock()
		if c.target == seq || ctx.Err() != nil {
			c.target = 0
			c.active = false
			c.mu.Unlock()
			return
		}
		seq = c.target
		c.mu.Unlock()
	}
}

func (c *Coordinator) acquireBySeq(ctx context.Context, seq uint32) {
	c.log.Warn().Uint32("seq", seq).Msg("missing node in ledger")

	h, err := c.index.HashBySeq(ctx, seq)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.Error().Err(err).Uint32("seq", seq).Msg("could not look up hash of ledger")
		}
		return
	}
	if h.IsZero() {
		return
	}
	c.request(ctx, h, seq)
}

func (c *Coordinator) request(ctx context.Context, h hash.Hash, seq uint32) {
	c.metrics.AcquisitionRequested(seq)
	_, err := c.acquirer.Acquire(ctx, h, seq, acquisition.ReasonGeneric)
	if err != nil && !acquisition.IsIncomplete(err) {
		c.log.Warn().Err(err).Str("ledger", h.String()).Uint32("seq", seq).Msg("could not acquire ledger")
	}
}
