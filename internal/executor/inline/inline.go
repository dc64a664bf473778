// Package inline provides the simplest Executor: it runs each task
// synchronously inside Submit, the direct analogue of the source
// project's DemoTaskExecutor.
package inline

import (
	"context"
	"sync"

	"github.com/noppelmax/depio-go/internal/domain/task"
)

// Executor runs tasks synchronously on the calling goroutine. It has
// no concept of queue depth: Submit returns only once the task has
// reached a terminal state, so the pipeline never observes more than
// one in-flight job at a time.
type Executor struct {
	mu        sync.Mutex
	completed int
}

// New returns an inline Executor.
func New() *Executor {
	return &Executor{}
}

// Submit expects t to already be Pending (the pipeline marks a task
// Pending once its dependencies are satisfied, before submitting it to
// any executor) and drives it through Running to a terminal state.
func (e *Executor) Submit(ctx context.Context, t *task.Task) error {
	err := t.Run(ctx)
	e.mu.Lock()
	e.completed++
	e.mu.Unlock()
	return err
}

func (e *Executor) HandlesDependencies() bool { return false }

func (e *Executor) JobsQueuedLimit() bool { return false }
func (e *Executor) MaxJobsQueued() int    { return 0 }

func (e *Executor) JobsPendingLimit() bool { return false }
func (e *Executor) MaxJobsPending() int    { return 0 }

// QueuedCount is always 0: Submit never returns before the job is
// terminal, so nothing is ever queued behind another job.
func (e *Executor) QueuedCount() int { return 0 }

// PendingCount is always 0 for the same reason.
func (e *Executor) PendingCount() int { return 0 }

func (e *Executor) CancelAll(ctx context.Context) error {
	// Nothing to cancel: by the time CancelAll could run, every
	// Submit call has already returned.
	return nil
}

func (e *Executor) WaitForAll(ctx context.Context) error {
	return nil
}
