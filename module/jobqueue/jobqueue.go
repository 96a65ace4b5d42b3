package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/module"
)

var _ module.JobSubmitter = (*JobQueue)(nil)

// JobQueue runs named background jobs on a small fixed size worker pool. A job name is
// "pending" from its acceptance until its function returns; submissions of a pending name
// are dropped.
type JobQueue struct {
	log     zerolog.Logger
	metrics module.JobQueueMetrics
	pool    *workerpool.WorkerPool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool
}

// New creates a job queue with the given number of workers. At least one worker is started.
func New(log zerolog.Logger, collector module.JobQueueMetrics, workers int) *JobQueue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobQueue{
		log:     log.With().Str("component", "jobqueue").Logger(),
		metrics: collector,
		pool:    workerpool.New(workers),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]struct{}),
	}
}

// Submit schedules the job. It returns false if a job with the same name is pending or the
// queue has been stopped.
func (q *JobQueue) Submit(name string, job module.Job) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.log.Debug().Str("job", name).Msg("job queue stopped, job refused")
		return false
	}
	if _, ok := q.pending[name]; ok {
		q.mu.Unlock()
		q.metrics.JobDropped(name)
		q.log.Debug().Str("job", name).Msg("job already pending, submission dropped")
		return false
	}
	q.pending[name] = struct{}{}
	q.mu.Unlock()

	q.metrics.JobSubmitted(name)
	submitted := time.Now()
	q.pool.Submit(func() {
		started := time.Now()
		defer func() {
			q.mu.Lock()
			delete(q.pending, name)
			q.mu.Unlock()
			q.metrics.JobFinished(name, started.Sub(submitted), time.Since(started))
		}()
		q.run(name, job)
	})
	return true
}

// run isolates panics of a single job so that one faulty job does not take down the pool.
func (q *JobQueue) run(name string, job module.Job) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("job", name).Err(fmt.Errorf("%v", r)).Msg("job panicked")
		}
	}()
	job(q.ctx)
}

// Pending reports whether a job of the given name is waiting or running.
func (q *JobQueue) Pending(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[name]
	return ok
}

// Size returns the number of jobs waiting or running.
func (q *JobQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// StopWait refuses new jobs, lets every accepted job run to completion and stops the workers.
func (q *JobQueue) StopWait() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.pool.StopWait()
	q.cancel()
	q.log.Debug().Msg("job queue drained")
}

// Stop refuses new jobs, cancels the context passed to running jobs and drops the jobs which
// have not started yet. It waits for the running jobs to return.
func (q *JobQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.cancel()
	q.pool.Stop()
}
