package module

import (
	"time"
)

// CacheMetrics tracks hit rates and sizes of the node's in-memory caches.
type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache
	CacheMiss(resource string)
}

// SweepMetrics tracks the periodic maintenance pass.
type SweepMetrics interface {
	// SweepStepDuration reports how long one named sweep step took.
	SweepStepDuration(step string, duration time.Duration)
	// SweepStepFailed is called when a sweep step returned an error or panicked.
	SweepStepFailed(step string)
	// SweepCompleted reports the duration of a whole pass.
	SweepCompleted(duration time.Duration)
	// FreeDiskSpace reports the free bytes of the database volume seen at sweep time.
	FreeDiskSpace(bytes uint64)
}

// RecoveryMetrics tracks missing state tree nodes and their repair.
type RecoveryMetrics interface {
	// MissingNodeBySeq is called for every missing node notification addressed by sequence.
	MissingNodeBySeq()
	// MissingNodeByHash is called for every missing node notification addressed by hash.
	MissingNodeByHash()
	// RecoveryLoopStarted is called when a new recovery loop claims ownership.
	RecoveryLoopStarted()
	// AcquisitionRequested is called for every acquisition issued by the recovery loop.
	AcquisitionRequested(seq uint32)
}

// BootstrapMetrics reports the outcome of the start-up ledger selection.
type BootstrapMetrics interface {
	// LedgerBootstrapped is called once with the strategy used, the resulting sequence and the duration.
	LedgerBootstrapped(strategy string, seq uint32, duration time.Duration)
	// BootstrapFailed is called when a load attempt fails its validation gate.
	BootstrapFailed(strategy string)
}

// JobQueueMetrics tracks the background scheduler.
type JobQueueMetrics interface {
	// JobSubmitted is called when a named job is accepted.
	JobSubmitted(name string)
	// JobDropped is called when a job is refused because one with the same name is pending.
	JobDropped(name string)
	// JobFinished reports how long the job waited in the queue and how long it ran.
	JobFinished(name string, latency time.Duration, duration time.Duration)
}

// LatencyMetrics tracks the io latency sampler.
type LatencyMetrics interface {
	// IOLatency reports the last sampled scheduling latency.
	IOLatency(latency time.Duration)
}
