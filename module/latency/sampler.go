package latency

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/module"
)

// warnThreshold is the latency above which a sample is logged.
const warnThreshold = 500 * time.Millisecond

// Sampler periodically measures how late a scheduled wake up is delivered. A large value means
// the process is starved of CPU or blocked in io.
type Sampler struct {
	log      zerolog.Logger
	metrics  module.LatencyMetrics
	interval time.Duration

	last    *atomic.Duration
	started *atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewSampler(log zerolog.Logger, collector module.LatencyMetrics, interval time.Duration) *Sampler {
	return &Sampler{
		log:      log.With().Str("component", "io_latency").Logger(),
		metrics:  collector,
		interval: interval,
		last:     atomic.NewDuration(0),
		started:  atomic.NewBool(false),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling routine. Subsequent calls are no-ops.
func (s *Sampler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
}

func (s *Sampler) loop() {
	defer close(s.done)
	for {
		deadline := time.Now().Add(s.interval)
		timer := time.NewTimer(s.interval)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case fired := <-timer.C:
			s.sample(fired.Sub(deadline))
		}
	}
}

func (s *Sampler) sample(latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	s.last.Store(latency)
	s.metrics.IOLatency(latency)
	if latency >= warnThreshold {
		s.log.Warn().Dur("latency", latency).Msg("io service latency")
	}
}

// LastSample returns the most recently measured latency.
func (s *Sampler) LastSample() time.Duration {
	return s.last.Load()
}

// CancelAsync asks the sampling routine to stop without waiting for it.
func (s *Sampler) CancelAsync() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Cancel stops the sampling routine and waits until it exited.
func (s *Sampler) Cancel() {
	s.CancelAsync()
	if s.started.Load() {
		<-s.done
	}
}
