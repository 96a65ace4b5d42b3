package cmd

import (
	"context"
	"time"

	units "github.com/docker/go-units"

	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/diskspace"
)

const (
	// firstSweepDelay is the delay of the first sweep after setup.
	firstSweepDelay = 10 * time.Second
	entropyInterval = 5 * time.Minute
)

// armTimers schedules the first sweep and the recurring entropy reseed.
func (n *LedgerNode) armTimers() {
	n.setSweepTimer(firstSweepDelay)
	n.setEntropyTimer()
}

func (n *LedgerNode) setSweepTimer(delay time.Duration) {
	n.timersMu.Lock()
	defer n.timersMu.Unlock()
	if n.timersStopped {
		return
	}
	n.sweepTimer = time.AfterFunc(delay, n.onSweepTimer)
}

func (n *LedgerNode) setEntropyTimer() {
	n.timersMu.Lock()
	defer n.timersMu.Unlock()
	if n.timersStopped {
		return
	}
	n.entropyTimer = time.AfterFunc(entropyInterval, n.onEntropyTimer)
}

// onSweepTimer submits a sweep unless the database volume is almost full, in which case the
// node is stopped instead.
func (n *LedgerNode) onSweepTimer() {
	if !n.checkDiskSpace() {
		return
	}

	n.jobs.Submit(module.JobSweep, func(ctx context.Context) {
		err := n.sweeper.Sweep(ctx)
		if err != nil {
			n.log.Warn().Err(err).Msg("sweep completed with failures")
		}
	})
	n.setSweepTimer(n.sweepInterval)
}

// checkDiskSpace returns false and requests a stop if the free space of the database volume
// is below the floor. A failing probe does not stop the node.
func (n *LedgerNode) checkDiskSpace() bool {
	free, err := n.diskProbe(n.dbPath)
	if err != nil {
		n.log.Warn().Err(err).Str("path", n.dbPath).Msg("could not check free disk space")
		return true
	}
	n.metrics.FreeDiskSpace(free)

	if diskspace.BelowFloor(free) {
		n.log.Error().
			Uint64("free_bytes", free).
			Str("free", units.BytesSize(float64(free))).
			Str("path", n.dbPath).
			Msg("remaining free disk space is less than 512MB, shutting down")
		n.SignalStop()
		return false
	}
	return true
}

func (n *LedgerNode) onEntropyTimer() {
	n.jobs.Submit(module.JobEntropy, func(context.Context) {
		err := n.entropy.Reseed()
		if err != nil {
			n.log.Warn().Err(err).Msg("could not reseed entropy pool")
		}
	})
	n.setEntropyTimer()
}

// stopTimers cancels both timers. Timers already firing do not re-arm afterwards.
func (n *LedgerNode) stopTimers() {
	n.timersMu.Lock()
	defer n.timersMu.Unlock()
	n.timersStopped = true
	if n.sweepTimer != nil {
		n.sweepTimer.Stop()
	}
	if n.entropyTimer != nil {
		n.entropyTimer.Stop()
	}
}
