// Package pool provides a bounded, in-process Executor backed by a
// fixed-size goroutine pool, the generalization of the source
// project's ThreadPoolExecutor-backed ParallelExecutor.
package pool

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/noppelmax/depio-go/internal/domain/task"
)

// Executor runs tasks on a fixed-size conc worker pool. Submission is
// throttled by a token-bucket limiter, mirroring the rate limiting the
// teacher stack applies to its own outbound calls, so a burst of
// ready tasks doesn't all start in the same instant.
type Executor struct {
	limiter    *rate.Limiter
	maxWorkers int

	mu      sync.Mutex
	p       *pool.ContextPool
	queued  int
	running int
}

// Option configures an Executor.
type Option func(*Executor)

// WithRateLimit overrides the default submission rate (10/s, burst 10).
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(e *Executor) { e.limiter = rate.NewLimiter(r, burst) }
}

// New returns a pool Executor that runs at most maxWorkers tasks
// concurrently.
func New(maxWorkers int, opts ...Option) *Executor {
	e := &Executor{
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		maxWorkers: maxWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.p = pool.New().WithMaxGoroutines(maxWorkers).WithContext(context.Background())
	return e
}

// Submit throttles on the rate limiter, then hands the task to the
// worker pool. Submit itself returns as soon as the job has been
// accepted into the pool; Task.Run executes on a pool goroutine.
func (e *Executor) Submit(ctx context.Context, t *task.Task) error {
	if err := e.limiter.Wait(ctx); err != nil {
		t.MarkFailed(err)
		return err
	}

	e.mu.Lock()
	e.queued++
	e.mu.Unlock()

	e.p.Go(func(ctx context.Context) error {
		e.mu.Lock()
		e.queued--
		e.running++
		e.mu.Unlock()

		err := t.Run(ctx)

		e.mu.Lock()
		e.running--
		e.mu.Unlock()
		return err
	})
	return nil
}

func (e *Executor) HandlesDependencies() bool { return false }

func (e *Executor) JobsQueuedLimit() bool { return false }
func (e *Executor) MaxJobsQueued() int    { return 0 }

// JobsPendingLimit/MaxJobsPending report the pool's own WithMaxGoroutines
// cap: PendingCount counts goroutines currently running a task, so a
// pipeline with Options.SubmitOnlyIfRunnable set stops submitting once
// the pool is saturated instead of queuing work it has no room for.
func (e *Executor) JobsPendingLimit() bool { return true }
func (e *Executor) MaxJobsPending() int    { return e.maxWorkers }

func (e *Executor) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queued
}

func (e *Executor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CancelAll has no effect on jobs already handed to the pool: conc
// does not support canceling an individual in-flight goroutine. The
// pipeline itself marks every task that is not yet terminal Canceled,
// including tasks already handed to the pool.
func (e *Executor) CancelAll(ctx context.Context) error {
	return nil
}

// WaitForAll blocks until every submitted job has returned, returning
// the errors of all failed jobs combined (conc's default pool
// semantics), or nil. ctx is not consulted: it always waits for the
// pool to drain.
func (e *Executor) WaitForAll(ctx context.Context) error {
	return e.p.Wait()
}
