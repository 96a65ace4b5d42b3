package timekeeper

import (
	"time"

	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/ledger"
)

// TimeKeeper provides the network adjusted clock used to stamp ledger close times.
type TimeKeeper struct {
	now    func() time.Time
	offset *atomic.Duration
}

// Option configures a TimeKeeper.
type Option func(*TimeKeeper)

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(tk *TimeKeeper) {
		tk.now = now
	}
}

func New(opts ...Option) *TimeKeeper {
	tk := &TimeKeeper{
		now:    time.Now,
		offset: atomic.NewDuration(0),
	}
	for _, apply := range opts {
		apply(tk)
	}
	return tk
}

// Now returns the adjusted wall clock time.
func (tk *TimeKeeper) Now() time.Time {
	return tk.now().Add(tk.offset.Load())
}

// CloseTime returns the adjusted time in network time units.
func (tk *TimeKeeper) CloseTime() ledger.NetTime {
	return ledger.NetTimeFrom(tk.Now())
}

// AdjustCloseTime records the offset between the local clock and the close times observed
// on the network.
func (tk *TimeKeeper) AdjustCloseTime(offset time.Duration) {
	tk.offset.Store(offset)
}

// Offset returns the current clock adjustment.
func (tk *TimeKeeper) Offset() time.Duration {
	return tk.offset.Load()
}
