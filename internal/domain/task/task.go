package task

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
	"github.com/noppelmax/depio-go/internal/logging"
	"github.com/noppelmax/depio-go/internal/metrics"
)

// Func is the unit of work a Task wraps. It is the Go-idiomatic
// replacement for invoking a function with bound *args/**kwargs: the
// caller closes over whatever parameters it needs and the pipeline
// only ever calls fn(ctx).
type Func func(ctx context.Context) error

// Task is a single node in the pipeline's dependency graph. Fields set
// at construction (Name, QueueID, Func, Dependencies, Products,
// HardDependencies) are immutable after New returns; TaskDependencies,
// PathDependencies and DependentTasks are resolved once by the pipeline
// during resolve and are read-only from then on; State and the
// capture buffers are mutated only through the methods below, which
// hold mu for any compound read-modify-write.
type Task struct {
	Name             string
	QueueID          int
	Func             Func
	Dependencies     []artifact.Reference
	Products         []artifact.Reference
	HardDependencies []*Task
	AlwaysBuild      bool

	// Resolved by the pipeline, not by Task itself.
	TaskDependencies []*Task              // tasks producing one of our Dependencies
	PathDependencies []artifact.Reference // Dependencies with no producing task
	DependentTasks   []*Task              // reverse edges: tasks that depend on us

	// Handle is executor-specific bookkeeping (a job ID, a gRPC job
	// handle, ...). Only the bound executor reads or writes it.
	Handle any

	mu            sync.Mutex
	state         State
	err           error
	externalState string
	stdout        bytes.Buffer
	stderr        bytes.Buffer
}

// Option configures a Task at construction time.
type Option func(*Task)

// WithDependencies declares the artifacts this task consumes.
func WithDependencies(refs ...artifact.Reference) Option {
	return func(t *Task) { t.Dependencies = append(t.Dependencies, refs...) }
}

// WithProducts declares the artifacts this task produces.
func WithProducts(refs ...artifact.Reference) Option {
	return func(t *Task) { t.Products = append(t.Products, refs...) }
}

// WithHardDependencies forces this task to wait on other tasks even
// when no artifact dataflow connects them.
func WithHardDependencies(tasks ...*Task) Option {
	return func(t *Task) { t.HardDependencies = append(t.HardDependencies, tasks...) }
}

// WithAlwaysBuild disables the mtime-based skippability rule for this
// task: it always runs even if its products look up to date.
func WithAlwaysBuild() Option {
	return func(t *Task) { t.AlwaysBuild = true }
}

// New constructs a Task in the Waiting state. queueID controls
// submission order among otherwise-unordered ready tasks.
func New(name string, queueID int, fn Func, opts ...Option) *Task {
	t := &Task{
		Name:    name,
		QueueID: queueID,
		Func:    fn,
		state:   Waiting,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the error the task ended with, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// ExternalState returns the last status string an executor reported
// for this task's external job, or "" if none was ever set (every
// in-process executor leaves it unset).
func (t *Task) ExternalState() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.externalState
}

// SetExternalState records the raw status an executor observed for
// this task's external job, for display purposes only; it never
// drives the state machine itself. Called by the cluster executor's
// poll loop.
func (t *Task) SetExternalState(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.externalState = s
}

// Stdout returns the captured standard-output bytes written during Run.
func (t *Task) Stdout() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stdout.Bytes()
}

// Stderr returns the captured standard-error bytes written during Run.
func (t *Task) Stderr() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stderr.Bytes()
}

// setState performs a guarded transition, panicking on an illegal edge:
// an illegal transition is a scheduler bug, not a runtime condition
// callers should recover from. Every successful transition is reported
// through logging.Global, if one has been configured for this run.
func (t *Task) setState(next State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.CanTransitionTo(next) {
		panic(fmt.Sprintf("task %q: illegal transition %s -> %s", t.Name, t.state, next))
	}
	prev := t.state
	t.state = next
	logging.TaskEvent(logging.Global(), t.Name, next.String(), t.err)
	if next == Running {
		metrics.IncInFlight()
	} else if prev == Running {
		metrics.DecInFlight()
	}
}

// MarkPending moves a Waiting task to Pending once its dependencies are
// satisfied. Called by the pipeline, never by an executor.
func (t *Task) MarkPending() {
	t.setState(Pending)
}

// MarkSkipped moves a Waiting task directly to Skipped when its
// products are already up to date.
func (t *Task) MarkSkipped() {
	t.setState(Skipped)
}

// MarkDepFailed propagates a failed dependency onto this task. Valid
// from Waiting or Pending.
func (t *Task) MarkDepFailed() {
	t.setState(DepFailed)
}

// MarkCanceled is called by the pipeline when a run is aborting and
// this task never reached a terminal state on its own.
func (t *Task) MarkCanceled() {
	t.setState(Canceled)
}

// MarkHold records that an executor reports the job as externally
// queued but not yet running.
func (t *Task) MarkHold() {
	t.setState(Hold)
}

// MarkUnknown records that an executor could not classify the job.
func (t *Task) MarkUnknown() {
	t.setState(Unknown)
}

// MarkRunning is set by the executor immediately before invoking Func.
func (t *Task) MarkRunning() {
	t.setState(Running)
}

// MarkFailed is set by the executor when the job reaches a terminal
// failure outside of Run itself (e.g. an external cluster job).
func (t *Task) MarkFailed(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.setState(Failed)
}

// MarkFinished is set by the executor when an external job reports
// success; Run performs the equivalent transition itself for in-process
// executors after verifying products.
func (t *Task) MarkFinished() {
	t.setState(Finished)
}

// Run executes the task's function in-process, implementing the
// dependency check, capture, invocation and product verification steps.
// It is used directly by the inline and pool executors; the cluster
// executor instead submits Func's effect externally and drives the same
// state machine via MarkRunning/MarkFinished/MarkFailed as it polls.
func (t *Task) Run(ctx context.Context) error {
	// 1. path dependencies must exist before we start.
	for _, dep := range t.PathDependencies {
		if !dep.Exists() {
			err := newRunError(t.Name, ErrDependencyNotMet, dep.String())
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			t.setState(Failed)
			return err
		}
	}

	// 2. snapshot the time before invocation so we can tell a product
	// was actually rewritten rather than merely pre-existing.
	startedAt := time.Now()
	defer func() {
		metrics.RecordTaskDuration(t.Name, time.Since(startedAt).Seconds())
	}()

	t.MarkRunning()
	t.resetCapture()
	err := t.Func(ctx)

	if err != nil {
		wrapped := newRunError(t.Name, ErrTaskRaised, "")
		wrapped.Err = fmt.Errorf("%w: %v", ErrTaskRaised, err)
		t.mu.Lock()
		t.err = wrapped
		t.mu.Unlock()
		t.setState(Failed)
		return wrapped
	}

	// 5 & 6. every declared product must exist and must have been
	// modified at or after startedAt. AlwaysBuild does not relax this.
	for _, p := range t.Products {
		if !p.Exists() {
			rerr := newRunError(t.Name, ErrProductNotProduced, p.String())
			t.mu.Lock()
			t.err = rerr
			t.mu.Unlock()
			t.setState(Failed)
			return rerr
		}
		mtime, ok := p.ModTime()
		if ok && mtime.Before(startedAt) {
			rerr := newRunError(t.Name, ErrProductNotUpdated, p.String())
			t.mu.Lock()
			t.err = rerr
			t.mu.Unlock()
			t.setState(Failed)
			return rerr
		}
	}

	t.setState(Finished)
	return nil
}

// IsSkippable reports whether every product already exists and is no
// older than every dependency and every path dependency, the
// mtime-aware rule chosen over an existence-only one.
func (t *Task) IsSkippable() bool {
	if t.AlwaysBuild || len(t.Products) == 0 {
		return false
	}
	var oldestProduct time.Time
	for i, p := range t.Products {
		if !p.Exists() {
			return false
		}
		mtime, ok := p.ModTime()
		if !ok {
			return false
		}
		if i == 0 || mtime.Before(oldestProduct) {
			oldestProduct = mtime
		}
	}
	for _, dep := range t.Dependencies {
		depTime, ok := dep.ModTime()
		if ok && depTime.After(oldestProduct) {
			return false
		}
	}
	return true
}

func (t *Task) resetCapture() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stdout.Reset()
	t.stderr.Reset()
}

// StdoutWriter and StderrWriter expose the task's capture buffers to a
// Func that wants to write through them explicitly. Capture is scoped
// to this one task's buffers, never a process-global redirect, so
// concurrent tasks in the pool executor never contend on it.
func (t *Task) StdoutWriter() *bytes.Buffer {
	return &t.stdout
}

func (t *Task) StderrWriter() *bytes.Buffer {
	return &t.stderr
}
