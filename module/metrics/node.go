package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vbc-network/vbcd/module"
)

var (
	_ module.CacheMetrics     = (*NodeCollector)(nil)
	_ module.SweepMetrics     = (*NodeCollector)(nil)
	_ module.RecoveryMetrics  = (*NodeCollector)(nil)
	_ module.BootstrapMetrics = (*NodeCollector)(nil)
	_ module.JobQueueMetrics  = (*NodeCollector)(nil)
	_ module.LatencyMetrics   = (*NodeCollector)(nil)
)

// NodeCollector implements every metrics interface used by the ledger node core.
type NodeCollector struct {
	cacheEntries *prometheus.GaugeVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec

	sweepStepDuration *prometheus.HistogramVec
	sweepStepFailures *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	freeDiskSpace     prometheus.Gauge

	missingBySeq      prometheus.Counter
	missingByHash     prometheus.Counter
	recoveryLoops     prometheus.Counter
	acquisitions      prometheus.Counter
	lastAcquiredSeq   prometheus.Gauge
	bootstrapSeq      *prometheus.GaugeVec
	bootstrapDuration *prometheus.GaugeVec
	bootstrapFailures *prometheus.CounterVec

	jobsSubmitted *prometheus.CounterVec
	jobsDropped   *prometheus.CounterVec
	jobLatency    *prometheus.HistogramVec
	jobDuration   *prometheus.HistogramVec

	ioLatency prometheus.Gauge
}

// NewNodeCollector creates the collector and registers all of its metrics with the registerer.
func NewNodeCollector(registrar prometheus.Registerer) *NodeCollector {
	nc := &NodeCollector{
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemCache,
			Name:      "entries_total",
			Help:      "the number of entries in the cache",
		}, []string{LabelResource}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemCache,
			Name:      "hits_total",
			Help:      "the number of cache hits",
		}, []string{LabelResource}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemCache,
			Name:      "misses_total",
			Help:      "the number of cache misses",
		}, []string{LabelResource}),

		sweepStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSweep,
			Name:      "step_duration_seconds",
			Help:      "duration of a single sweep step",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5},
		}, []string{LabelStep}),
		sweepStepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSweep,
			Name:      "step_failures_total",
			Help:      "the number of sweep steps which failed",
		}, []string{LabelStep}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSweep,
			Name:      "duration_seconds",
			Help:      "duration of a complete sweep pass",
			Buckets:   []float64{.01, .1, .5, 1, 5, 30},
		}),
		freeDiskSpace: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSweep,
			Name:      "free_disk_bytes",
			Help:      "free bytes on the database volume at the last sweep",
		}),

		missingBySeq: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRecover,
			Name:      "missing_node_by_seq_total",
			Help:      "the number of missing node notifications addressed by ledger sequence",
		}),
		missingByHash: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRecover,
			Name:      "missing_node_by_hash_total",
			Help:      "the number of missing node notifications addressed by hash",
		}),
		recoveryLoops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRecover,
			Name:      "loops_total",
			Help:      "the number of recovery loops started",
		}),
		acquisitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRecover,
			Name:      "acquisitions_total",
			Help:      "the number of acquisitions requested by the recovery loop",
		}),
		lastAcquiredSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRecover,
			Name:      "last_acquired_seq",
			Help:      "the ledger sequence of the last acquisition requested by the recovery loop",
		}),

		bootstrapSeq: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemStartup,
			Name:      "ledger_seq",
			Help:      "the sequence of the ledger installed at start up",
		}, []string{LabelStrategy}),
		bootstrapDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemStartup,
			Name:      "duration_seconds",
			Help:      "time spent establishing the start up ledger",
		}, []string{LabelStrategy}),
		bootstrapFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemStartup,
			Name:      "failures_total",
			Help:      "the number of ledger load attempts which failed validation",
		}, []string{LabelStrategy}),

		jobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemJobs,
			Name:      "submitted_total",
			Help:      "the number of jobs accepted by the job queue",
		}, []string{LabelJob}),
		jobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemJobs,
			Name:      "dropped_total",
			Help:      "the number of jobs refused because the same job was pending",
		}, []string{LabelJob}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemJobs,
			Name:      "latency_seconds",
			Help:      "time a job spent waiting for a worker",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5},
		}, []string{LabelJob}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemJobs,
			Name:      "duration_seconds",
			Help:      "time a job spent running",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 30},
		}, []string{LabelJob}),

		ioLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemIO,
			Name:      "latency_ms",
			Help:      "the last sampled scheduling latency of the background workers",
		}),
	}

	registrar.MustRegister(
		nc.cacheEntries, nc.cacheHits, nc.cacheMisses,
		nc.sweepStepDuration, nc.sweepStepFailures, nc.sweepDuration, nc.freeDiskSpace,
		nc.missingBySeq, nc.missingByHash, nc.recoveryLoops, nc.acquisitions, nc.lastAcquiredSeq,
		nc.bootstrapSeq, nc.bootstrapDuration, nc.bootstrapFailures,
		nc.jobsSubmitted, nc.jobsDropped, nc.jobLatency, nc.jobDuration,
		nc.ioLatency,
	)

	return nc
}

func (nc *NodeCollector) CacheEntries(resource string, entries uint) {
	nc.cacheEntries.WithLabelValues(resource).Set(float64(entries))
}

func (nc *NodeCollector) CacheHit(resource string) {
	nc.cacheHits.WithLabelValues(resource).Inc()
}

func (nc *NodeCollector) CacheMiss(resource string) {
	nc.cacheMisses.WithLabelValues(resource).Inc()
}

func (nc *NodeCollector) SweepStepDuration(step string, duration time.Duration) {
	nc.sweepStepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

func (nc *NodeCollector) SweepStepFailed(step string) {
	nc.sweepStepFailures.WithLabelValues(step).Inc()
}

func (nc *NodeCollector) SweepCompleted(duration time.Duration) {
	nc.sweepDuration.Observe(duration.Seconds())
}

func (nc *NodeCollector) FreeDiskSpace(bytes uint64) {
	nc.freeDiskSpace.Set(float64(bytes))
}

func (nc *NodeCollector) MissingNodeBySeq() {
	nc.missingBySeq.Inc()
}

func (nc *NodeCollector) MissingNodeByHash() {
	nc.missingByHash.Inc()
}

func (nc *NodeCollector) RecoveryLoopStarted() {
	nc.recoveryLoops.Inc()
}

func (nc *NodeCollector) AcquisitionRequested(seq uint32) {
	nc.acquisitions.Inc()
	nc.lastAcquiredSeq.Set(float64(seq))
}

func (nc *NodeCollector) LedgerBootstrapped(strategy string, seq uint32, duration time.Duration) {
	nc.bootstrapSeq.WithLabelValues(strategy).Set(float64(seq))
	nc.bootstrapDuration.WithLabelValues(strategy).Set(duration.Seconds())
}

func (nc *NodeCollector) BootstrapFailed(strategy string) {
	nc.bootstrapFailures.WithLabelValues(strategy).Inc()
}

func (nc *NodeCollector) JobSubmitted(name string) {
	nc.jobsSubmitted.WithLabelValues(name).Inc()
}

func (nc *NodeCollector) JobDropped(name string) {
	nc.jobsDropped.WithLabelValues(name).Inc()
}

func (nc *NodeCollector) JobFinished(name string, latency time.Duration, duration time.Duration) {
	nc.jobLatency.WithLabelValues(name).Observe(latency.Seconds())
	nc.jobDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func (nc *NodeCollector) IOLatency(latency time.Duration) {
	nc.ioLatency.Set(float64(latency.Milliseconds()))
}
