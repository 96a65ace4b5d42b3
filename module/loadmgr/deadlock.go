package loadmgr

import (
	"time"

	"go.uber.org/atomic"
)

const (
	// DeadlockWarnAfter is the heartbeat gap after which a stall is reported.
	DeadlockWarnAfter = 10 * time.Second
	// DeadlockFatalAfter is the heartbeat gap after which the node gives up.
	DeadlockFatalAfter = 500 * time.Second
)

// DeadlockDetector watches a heartbeat which a healthy node resets regularly. It is inactive
// until Activate is called.
type DeadlockDetector struct {
	now    func() time.Time
	active *atomic.Bool
	// unix nanoseconds of the last heartbeat
	last *atomic.Int64
}

func NewDeadlockDetector(now func() time.Time) *DeadlockDetector {
	if now == nil {
		now = time.Now
	}
	return &DeadlockDetector{
		now:    now,
		active: atomic.NewBool(false),
		last:   atomic.NewInt64(now().UnixNano()),
	}
}

// Activate resets the heartbeat and starts reporting stalls.
func (d *DeadlockDetector) Activate() {
	d.Reset()
	d.active.Store(true)
}

// Reset records a heartbeat.
func (d *DeadlockDetector) Reset() {
	d.last.Store(d.now().UnixNano())
}

// Stalled returns the time since the last heartbeat, or zero if the detector is inactive.
func (d *DeadlockDetector) Stalled() time.Duration {
	if !d.active.Load() {
		return 0
	}
	return d.now().Sub(time.Unix(0, d.last.Load()))
}
