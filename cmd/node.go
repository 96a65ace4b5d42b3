package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/vbc-network/vbcd/engine/ledgermaster"
	"github.com/vbc-network/vbcd/engine/netops"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/component"
	"github.com/vbc-network/vbcd/module/diskspace"
	"github.com/vbc-network/vbcd/module/irrecoverable"
	"github.com/vbc-network/vbcd/module/lifecycle"
	"github.com/vbc-network/vbcd/module/loadmgr"
	"github.com/vbc-network/vbcd/module/util"
)

const (
	// shutdownTimeout bounds the ordered stop.
	shutdownTimeout = 30 * time.Second
	// deadlockCheckInterval is how often the job queue heartbeat is checked.
	deadlockCheckInterval = time.Second
)

// sweeper runs one maintenance pass.
type sweeper interface {
	Sweep(ctx context.Context) error
}

// entropySource is reseeded periodically.
type entropySource interface {
	Reseed() error
}

// shutdownStep is one entry of the ordered stop. Steps run in the order the builder lists them,
// each one regardless of the failure of an earlier one.
type shutdownStep struct {
	name string
	fn   func(ctx context.Context) error
}

// LedgerNode is a set up ledger node. Run blocks until the node is asked to stop and then walks
// the shutdown list.
type LedgerNode struct {
	*component.ComponentManager

	log   zerolog.Logger
	state *lifecycle.StateMachine

	elbSupport    bool
	standAlone    bool
	dbPath        string
	sweepInterval time.Duration

	metrics   module.SweepMetrics
	ops       *netops.NetworkOPs
	master    *ledgermaster.LedgerMaster
	loadMgr   *loadmgr.LoadManager
	deadlock  *loadmgr.DeadlockDetector
	recovery  component.Component
	jobs      module.JobSubmitter
	sweeper   sweeper
	entropy   entropySource
	diskProbe diskspace.Probe

	// starters are called once when the node starts, e.g. the io latency sampler
	starters []func()
	// lcl is the ledger established during setup
	lcl *ledger.Snapshot

	timersMu      sync.Mutex
	timersStopped bool
	sweepTimer    *time.Timer
	entropyTimer  *time.Timer

	shutdownSteps []shutdownStep

	stopOnce sync.Once
	stop     chan struct{}
}

// build wires the node's workers. The recovery coordinator always runs, the deadlock detector
// only for a node attached to the network.
func (n *LedgerNode) build() {
	n.stop = make(chan struct{})
	builder := component.NewComponentManagerBuilder().
		AddWorker("missing node recovery", n.runRecovery)
	if !n.standAlone {
		builder.AddWorker("deadlock detector", n.detectDeadlock)
	}
	n.ComponentManager = builder.Build()
}

// Run starts the node and blocks until SignalStop is called or a worker throws an
// irrecoverable error. It then runs the ordered shutdown and returns the combined errors.
func (n *LedgerNode) Run() error {
	err := n.state.Transition(lifecycle.StateStarted)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	for _, start := range n.starters {
		start()
	}
	n.Start(signalerCtx)

	go func() {
		select {
		case <-n.Ready():
			event := n.log.Info()
			if n.lcl != nil {
				event = event.Uint32("ledger", n.lcl.Seq()).Str("hash", n.lcl.Hash().String())
			}
			event.Msg("ledger node startup complete")
		case <-ctx.Done():
		}
	}()

	// block until stop is requested or a fatal error is encountered
	stopCtx, stopCancel := util.WithDone(ctx, n.stop)
	defer stopCancel()
	runErr := util.WaitError(stopCtx, errChan)
	if runErr != nil {
		n.log.Error().Err(runErr).Msg("unhandled irrecoverable error")
	}

	n.log.Info().Msg("ledger node shutting down")
	err = n.state.Transition(lifecycle.StateStopping)
	if err != nil {
		n.log.Warn().Err(err).Msg("unexpected lifecycle state at shutdown")
	}

	// workers touch the stores, so they are stopped before the shutdown list runs
	cancel()
	select {
	case <-n.Done():
	case <-time.After(shutdownTimeout):
		n.log.Error().Strs("pending", n.Pending()).Msg("workers did not stop in time")
	}

	shutdownErr := n.shutdown()
	err = n.state.Transition(lifecycle.StateStopped)
	if err != nil {
		n.log.Warn().Err(err).Msg("unexpected lifecycle state after shutdown")
	}
	n.log.Info().Msg("ledger node shutdown complete")
	return multierr.Combine(runErr, shutdownErr)
}

// SignalStop asks the node to stop. It may be called any number of times from any goroutine.
func (n *LedgerNode) SignalStop() {
	n.stopOnce.Do(func() {
		n.log.Info().Msg("stop requested")
		close(n.stop)
	})
}

// Stopping is closed once a stop was requested.
func (n *LedgerNode) Stopping() <-chan struct{} {
	return n.stop
}

// State returns the lifecycle phase of the node.
func (n *LedgerNode) State() lifecycle.State {
	return n.state.Current()
}

// Ledger returns the ledger established during setup.
func (n *LedgerNode) Ledger() *ledger.Snapshot {
	return n.lcl
}

func (n *LedgerNode) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	for _, step := range n.shutdownSteps {
		err := n.runStep(ctx, step)
		if err != nil {
			n.log.Error().Err(err).Str("step", step.name).Msg("shutdown step failed")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		n.log.Debug().Str("step", step.name).Msg("shutdown step complete")
	}
	return errs
}

func (n *LedgerNode) runStep(ctx context.Context, step shutdownStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.fn(ctx)
}

// runRecovery runs the missing node coordinator for the lifetime of the node.
func (n *LedgerNode) runRecovery(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	n.recovery.Start(ctx)
	select {
	case <-n.recovery.Ready():
		ready()
	case <-ctx.Done():
	}
	<-n.recovery.Done()
}

// detectDeadlock submits a heartbeat job every second and watches that the job queue runs it.
func (n *LedgerNode) detectDeadlock(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	n.deadlock.Activate()
	ready()

	ticker := time.NewTicker(deadlockCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n.jobs.Submit(module.JobHeartbeat, func(context.Context) {
			n.deadlock.Reset()
		})

		stalled := n.deadlock.Stalled()
		switch {
		case stalled >= loadmgr.DeadlockFatalAfter:
			ctx.Throw(fmt.Errorf("job queue stalled for %s", stalled))
			return
		case stalled >= loadmgr.DeadlockWarnAfter:
			n.log.Warn().Dur("stalled", stalled).Msg("server stalled")
		}
	}
}
