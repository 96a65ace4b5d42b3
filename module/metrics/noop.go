package metrics

import (
	"time"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) CacheEntries(resource string, entries uint)               {}
func (nc *NoopCollector) CacheHit(resource string)                                 {}
func (nc *NoopCollector) CacheMiss(resource string)                                {}
func (nc *NoopCollector) SweepStepDuration(step string, duration time.Duration)    {}
func (nc *NoopCollector) SweepStepFailed(step string)                              {}
func (nc *NoopCollector) SweepCompleted(duration time.Duration)                    {}
func (nc *NoopCollector) FreeDiskSpace(bytes uint64)                               {}
func (nc *NoopCollector) MissingNodeBySeq()                                        {}
func (nc *NoopCollector) MissingNodeByHash()                                       {}
func (nc *NoopCollector) RecoveryLoopStarted()                                     {}
func (nc *NoopCollector) AcquisitionRequested(seq uint32)                          {}
func (nc *NoopCollector) LedgerBootstrapped(string, uint32, time.Duration)         {}
func (nc *NoopCollector) BootstrapFailed(strategy string)                          {}
func (nc *NoopCollector) JobSubmitted(name string)                                 {}
func (nc *NoopCollector) JobDropped(name string)                                   {}
func (nc *NoopCollector) JobFinished(name string, latency, duration time.Duration) {}
func (nc *NoopCollector) IOLatency(latency time.Duration)                          {}
