// Package executor defines the contract the pipeline uses to run task
// jobs, independent of where or how those jobs actually execute.
package executor

import (
	"context"

	"github.com/noppelmax/depio-go/internal/domain/task"
)

// Executor dispatches task jobs and reports on them. Implementations
// live under internal/executor/{inline,pool,cluster}; the pipeline
// only ever talks to this interface.
type Executor interface {
	// Submit starts t's job. Asynchronous executors return once the job
	// has been accepted (handed to a worker pool or sent to an external
	// service); the inline executor instead runs the job to completion
	// inside Submit. t's own state transitions (MarkRunning, MarkFinished,
	// MarkFailed, ...) are driven by the executor from that point on.
	Submit(ctx context.Context, t *task.Task) error

	// HandlesDependencies reports whether this executor resolves its
	// own notion of readiness (true for executors that delegate to an
	// external scheduler that itself understands dependencies) or
	// relies entirely on the pipeline only submitting tasks whose
	// dependencies are already satisfied (false).
	HandlesDependencies() bool

	// JobsQueuedLimit reports whether MaxJobsQueued bounds how many
	// jobs may be queued/in-flight at once.
	JobsQueuedLimit() bool
	// MaxJobsQueued is the bound JobsQueuedLimit refers to; undefined
	// when JobsQueuedLimit is false.
	MaxJobsQueued() int

	// JobsPendingLimit reports whether MaxJobsPending bounds how many
	// jobs may be waiting for a worker slot at once.
	JobsPendingLimit() bool
	// MaxJobsPending is the bound JobsPendingLimit refers to; undefined
	// when JobsPendingLimit is false.
	MaxJobsPending() int

	// QueuedCount and PendingCount report current occupancy against
	// the limits above, so the pipeline's SubmitOnlyIfRunnable mode can
	// decide whether to hold back further submissions.
	QueuedCount() int
	PendingCount() int

	// CancelAll best-effort cancels every job this executor is still
	// tracking. Called once a pipeline run is failing and shutting
	// down. It does not block on the jobs actually stopping.
	CancelAll(ctx context.Context) error

	// WaitForAll blocks until every submitted job has reached a
	// terminal state, or ctx is done.
	WaitForAll(ctx context.Context) error
}
