// Package cluster implements the Executor that delegates job execution
// to an external cluster job service, the Go analogue of the source
// project's submitit-backed SubmitItExecutor. The concrete wire
// contract of that external service is out of scope for this module,
// so requests and responses are carried as generic structpb.Struct
// payloads over a plain gRPC method invocation rather than a
// service-specific generated client.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
	"github.com/noppelmax/depio-go/internal/domain/task"
)

const (
	submitMethod = "/depio.cluster.v1.JobService/Submit"
	statusMethod = "/depio.cluster.v1.JobService/Status"
	cancelMethod = "/depio.cluster.v1.JobService/Cancel"
)

// Config configures an Executor.
type Config struct {
	// Address is the external job service's gRPC address.
	Address string
	// PollInterval is how often in-flight jobs are polled for status.
	PollInterval time.Duration
	// MaxJobsQueued bounds how many jobs may be in flight at once; 0
	// means unbounded.
	MaxJobsQueued int
	// ScratchPath is the SQLite file backing the per-run job journal.
	// Empty uses a private in-memory database.
	ScratchPath string
}

// jobEntry tracks one submitted external job against its owning Task.
type jobEntry struct {
	handle string
	task   *task.Task
}

// Executor submits task jobs to an external cluster scheduler over
// gRPC and polls their status until terminal.
type Executor struct {
	conn    *grpc.ClientConn
	store   *scratchStore
	limiter *rate.Limiter
	cfg     Config

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	stopped bool
	pollWG  sync.WaitGroup
}

// Dial connects to the external job service and starts its background
// poll loop.
func Dial(ctx context.Context, cfg Config) (*Executor, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	conn, err := grpc.DialContext(ctx, cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("cluster: dial %s: %w", cfg.Address, err)
	}
	store, err := openScratchStore(cfg.ScratchPath)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("cluster: open scratch store: %w", err)
	}

	e := &Executor{
		conn:    conn,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		cfg:     cfg,
		jobs:    make(map[string]*jobEntry),
	}
	e.pollWG.Add(1)
	go e.pollLoop(ctx)
	return e, nil
}

// HandlesDependencies is true: the cluster executor submits whatever
// it is given and reports back the external system's own
// classification, it does not re-derive readiness itself. It still
// only receives tasks the pipeline has already marked Pending.
func (e *Executor) HandlesDependencies() bool { return true }

func (e *Executor) JobsQueuedLimit() bool { return e.cfg.MaxJobsQueued > 0 }
func (e *Executor) MaxJobsQueued() int    { return e.cfg.MaxJobsQueued }

func (e *Executor) JobsPendingLimit() bool { return false }
func (e *Executor) MaxJobsPending() int    { return 0 }

func (e *Executor) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.jobs)
}

func (e *Executor) PendingCount() int { return 0 }

// Submit encodes t's dependencies and products into a structpb payload
// and asks the external service to run it, recording the returned job
// handle both in-memory and in the scratch journal.
func (e *Executor) Submit(ctx context.Context, t *task.Task) error {
	if err := e.limiter.Wait(ctx); err != nil {
		t.MarkFailed(err)
		return err
	}

	req, err := structpb.NewStruct(map[string]any{
		"task_name":    t.Name,
		"dependencies": refStrings(t.Dependencies),
		"products":     refStrings(t.Products),
		"request_id":   uuid.NewString(),
	})
	if err != nil {
		t.MarkFailed(err)
		return err
	}

	resp := &structpb.Struct{}
	if err := e.conn.Invoke(ctx, submitMethod, req, resp); err != nil {
		wrapped := fmt.Errorf("%w: %v", task.ErrExecutorFailure, err)
		t.MarkFailed(wrapped)
		return wrapped
	}

	handleVal, ok := resp.Fields["job_handle"]
	if !ok {
		err := fmt.Errorf("%w: submit response missing job_handle", task.ErrExecutorFailure)
		t.MarkFailed(err)
		return err
	}
	handle := handleVal.GetStringValue()
	t.Handle = handle

	if err := e.store.record(t.Name, handle); err != nil {
		// scratch-store failures are not fatal to the run itself.
		_ = err
	}

	e.mu.Lock()
	e.jobs[handle] = &jobEntry{handle: handle, task: t}
	e.mu.Unlock()

	t.MarkRunning()
	return nil
}

// CancelAll asks the external service to cancel every job this
// executor is still tracking.
func (e *Executor) CancelAll(ctx context.Context) error {
	e.mu.Lock()
	handles := make([]string, 0, len(e.jobs))
	for h := range e.jobs {
		handles = append(handles, h)
	}
	e.stopped = true
	e.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		req, _ := structpb.NewStruct(map[string]any{"job_handle": h})
		if err := e.conn.Invoke(ctx, cancelMethod, req, &structpb.Struct{}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WaitForAll blocks until every tracked job has left the jobs map
// (the poll loop removes an entry once its task reaches a terminal
// state) or ctx is done.
func (e *Executor) WaitForAll(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		e.mu.Lock()
		remaining := len(e.jobs)
		e.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the gRPC connection and stops the poll loop.
func (e *Executor) Close() error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	return e.conn.Close()
}

func (e *Executor) pollLoop(ctx context.Context) {
	defer e.pollWG.Done()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
		e.mu.Lock()
		stopped := e.stopped
		e.mu.Unlock()
		if stopped {
			return
		}
	}
}

func (e *Executor) pollOnce(ctx context.Context) {
	e.mu.Lock()
	entries := make([]*jobEntry, 0, len(e.jobs))
	for _, j := range e.jobs {
		entries = append(entries, j)
	}
	e.mu.Unlock()

	for _, entry := range entries {
		req, _ := structpb.NewStruct(map[string]any{"job_handle": entry.handle})
		resp := &structpb.Struct{}
		if err := e.conn.Invoke(ctx, statusMethod, req, resp); err != nil {
			markUnknown(entry.task)
			continue
		}
		statusVal, ok := resp.Fields["status"]
		if !ok {
			markUnknown(entry.task)
			continue
		}
		entry.task.SetExternalState(statusVal.GetStringValue())

		state, known := toTaskState(externalStatus(statusVal.GetStringValue()))
		if !known {
			markUnknown(entry.task)
			continue
		}

		switch state {
		case task.Hold:
			if entry.task.State() != task.Hold {
				entry.task.MarkHold()
			}
		case task.Running:
			if entry.task.State() != task.Running {
				entry.task.MarkRunning()
			}
		case task.Finished:
			entry.task.MarkFinished()
			e.forget(entry.handle)
		case task.Failed, task.Canceled:
			if state == task.Canceled {
				entry.task.MarkCanceled()
			} else {
				entry.task.MarkFailed(fmt.Errorf("%w: external job %s reported %s", task.ErrExecutorFailure, entry.handle, statusVal.GetStringValue()))
			}
			e.forget(entry.handle)
		}
		_ = e.store.updateState(entry.handle, statusVal.GetStringValue())
	}
}

// markUnknown moves t to Unknown unless it is already there; Unknown is
// not its own valid transition target, since losing classification
// twice in a row is not itself a state change.
func markUnknown(t *task.Task) {
	if t.State() != task.Unknown {
		t.MarkUnknown()
	}
}

func (e *Executor) forget(handle string) {
	e.mu.Lock()
	delete(e.jobs, handle)
	e.mu.Unlock()
}

func refStrings(refs []artifact.Reference) []any {
	out := make([]any, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
