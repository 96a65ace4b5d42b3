package module

import (
	"context"
)

const (
	JobSweep     = "sweep"
	JobEntropy   = "entropy"
	JobHeartbeat = "heartbeat"
)

// Job is the unit of background work run by the job queue.
type Job func(ctx context.Context)

// JobSubmitter schedules named background jobs. While a job of a given name is pending or
// running, further submissions of the same name are dropped.
type JobSubmitter interface {
	// Submit schedules the job and returns true if it was accepted.
	Submit(name string, job Job) bool
}
