// Package pipeline resolves a task dependency graph and drives tasks
// through it via a bound executor, the Go port of the source project's
// Pipeline class.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
	"github.com/noppelmax/depio-go/internal/domain/executor"
	"github.com/noppelmax/depio-go/internal/domain/task"
	"github.com/noppelmax/depio-go/internal/metrics"
)

// Renderer is the port the pipeline calls to display status. It is
// defined here, not in internal/display, so this package never depends
// on a rendering library; internal/display is the adapter that
// implements it.
type Renderer interface {
	Render(p *Pipeline)
}

// Result summarizes a completed Run.
type Result struct {
	Success     bool
	FailedTasks []*task.Task
}

// Pipeline owns a set of tasks, the dependency graph resolved from
// their declared artifacts, and the executor that runs them.
type Pipeline struct {
	Options Options

	Tasks              []*task.Task
	RegisteredProducts map[artifact.Reference]*task.Task
	HandledTasks       map[*task.Task]bool

	exec     executor.Executor
	renderer Renderer
	clock    Clock

	resolved bool
}

// New constructs an empty Pipeline bound to exec.
func New(exec executor.Executor, opts Options) *Pipeline {
	return &Pipeline{
		Options:            opts,
		RegisteredProducts: make(map[artifact.Reference]*task.Task),
		HandledTasks:       make(map[*task.Task]bool),
		exec:               exec,
		clock:              RealClock(),
	}
}

// SetRenderer binds the status-display adapter. Optional: a pipeline
// run with Options.Quiet set, or no renderer bound at all, simply
// skips the display step.
func (p *Pipeline) SetRenderer(r Renderer) {
	p.renderer = r
}

// SetClock overrides the pacing clock, for tests.
func (p *Pipeline) SetClock(c Clock) {
	p.clock = c
}

// AddTask registers t with the pipeline. It enforces the
// unique-producer invariant and the hard-dependency-in-queue
// invariant, and is idempotent: adding the same *Task pointer twice is
// a no-op, not an error.
func (p *Pipeline) AddTask(t *task.Task) error {
	for _, existing := range p.Tasks {
		if existing == t {
			return nil
		}
	}

	for _, product := range t.Products {
		if owner, ok := p.RegisteredProducts[product]; ok && owner != t {
			return fmt.Errorf("%w: %s (already produced by %q)", ErrProductAlreadyRegistered, product, owner.Name)
		}
	}

	for _, hard := range t.HardDependencies {
		if !p.contains(hard) {
			return fmt.Errorf("%w: task %q depends on %q", ErrTaskNotInQueue, t.Name, hard.Name)
		}
	}

	p.Tasks = append(p.Tasks, t)
	for _, product := range t.Products {
		p.RegisteredProducts[product] = t
	}
	p.resolved = false
	return nil
}

// AddTasks registers every task in ts, stopping at the first error.
func (p *Pipeline) AddTasks(ts ...*task.Task) error {
	for _, t := range ts {
		if err := p.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) contains(t *task.Task) bool {
	for _, existing := range p.Tasks {
		if existing == t {
			return true
		}
	}
	return false
}

// resolve builds TaskDependencies/PathDependencies/DependentTasks for
// every task from the dataflow declared via Dependencies/Products, and
// rejects an unsatisfiable or cyclic graph. It is idempotent and safe
// to call repeatedly; AddTask invalidates the cached result.
func (p *Pipeline) resolve() error {
	if p.resolved {
		return nil
	}

	for _, t := range p.Tasks {
		t.TaskDependencies = nil
		t.PathDependencies = nil
		t.DependentTasks = nil
	}

	for _, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if producer, ok := p.RegisteredProducts[dep]; ok {
				t.TaskDependencies = append(t.TaskDependencies, producer)
				continue
			}
			if dep.Exists() {
				t.PathDependencies = append(t.PathDependencies, dep)
				continue
			}
			return fmt.Errorf("%w: task %q needs %s", ErrDependencyNotAvailable, t.Name, dep)
		}
	}

	// reverse edges, populated once here and read-only from then on.
	for _, t := range p.Tasks {
		for _, producer := range t.TaskDependencies {
			producer.DependentTasks = append(producer.DependentTasks, t)
		}
		for _, hard := range t.HardDependencies {
			hard.DependentTasks = append(hard.DependentTasks, t)
		}
	}

	if cyclic := p.findCycle(); cyclic != nil {
		return fmt.Errorf("%w: %s", ErrCyclicDependency, describeCycle(cyclic))
	}

	sort.SliceStable(p.Tasks, func(i, j int) bool {
		return p.Tasks[i].QueueID < p.Tasks[j].QueueID
	})

	p.resolved = true
	return nil
}

func describeCycle(cycle []*task.Task) string {
	s := ""
	for i, t := range cycle {
		if i > 0 {
			s += " -> "
		}
		s += t.Name
	}
	return s
}

// findCycle runs a DFS over TaskDependencies+HardDependencies looking
// for a back edge, returning the offending cycle (the tasks in order,
// the first one repeated at the end) or nil if the graph is acyclic.
func (p *Pipeline) findCycle() []*task.Task {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[*task.Task]int, len(p.Tasks))
	var path []*task.Task

	var visit func(t *task.Task) []*task.Task
	visit = func(t *task.Task) []*task.Task {
		state[t] = visiting
		path = append(path, t)

		deps := make([]*task.Task, 0, len(t.TaskDependencies)+len(t.HardDependencies))
		deps = append(deps, t.TaskDependencies...)
		deps = append(deps, t.HardDependencies...)

		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				// found the back edge; trim path down to the cycle itself.
				for i, pt := range path {
					if pt == dep {
						cyc := append([]*task.Task{}, path[i:]...)
						return append(cyc, dep)
					}
				}
				return []*task.Task{dep}
			case unvisited:
				if cyc := visit(dep); cyc != nil {
					return cyc
				}
			}
		}

		state[t] = done
		path = path[:len(path)-1]
		return nil
	}

	for _, t := range p.Tasks {
		if state[t] == unvisited {
			if cyc := visit(t); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// Run resolves the dependency graph, then loops: propagate failures to
// a fixed point, mark newly-ready tasks Pending or Skipped, submit
// Pending tasks in queue order, render status, and check for
// completion, sleeping Options.RefreshPeriod between passes. It
// returns once every task has reached a terminal state or ctx is
// canceled.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := p.resolve(); err != nil {
		return nil, err
	}

	for {
		p.propagateFailures()
		p.markReadyTasks()

		if err := p.submitReadyTasks(ctx); err != nil {
			return nil, err
		}

		if p.renderer != nil && !p.Options.Quiet {
			p.renderer.Render(p)
		}

		if p.allTerminal() {
			return p.finish(), nil
		}

		if ctx.Err() != nil {
			p.cancelRemaining(ctx)
			return p.finish(), ctx.Err()
		}

		p.clock.Sleep(ctx, p.Options.RefreshPeriod)
	}
}

// propagateFailures iterates to a fixed point: any Waiting or Pending
// task with a failed-terminal dependency or hard dependency is marked
// DepFailed, and since that is itself a failed-terminal state it can
// cascade to that task's own dependents on the next pass. Tasks already
// handed to an executor (Running, Hold, Unknown) are left to it.
func (p *Pipeline) propagateFailures() {
	for {
		metrics.IncPropagationPass()
		changed := false
		for _, t := range p.Tasks {
			if s := t.State(); s != task.Waiting && s != task.Pending {
				continue
			}
			if p.hasFailedDependency(t) {
				t.MarkDepFailed()
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (p *Pipeline) hasFailedDependency(t *task.Task) bool {
	for _, dep := range t.TaskDependencies {
		if dep.State().IsFailedTerminal() {
			return true
		}
	}
	for _, dep := range t.HardDependencies {
		if dep.State().IsFailedTerminal() {
			return true
		}
	}
	return false
}

// markReadyTasks moves Waiting tasks to Skipped (if their products are
// already up to date) or Pending (otherwise, ready for submission),
// once dependenciesSatisfied admits them: either the bound executor
// tracks dependencies itself, or every dependency has already reached
// a successful terminal state.
func (p *Pipeline) markReadyTasks() {
	for _, t := range p.Tasks {
		if t.State() != task.Waiting {
			continue
		}
		if !p.dependenciesSatisfied(t) {
			continue
		}
		if t.IsSkippable() {
			t.MarkSkipped()
		} else {
			t.MarkPending()
		}
	}
}

// dependenciesSatisfied reports whether t is ready to submit: either
// the executor handles dependency ordering itself (the cluster
// executor delegates that to the external scheduler), or every one of
// t's task and hard dependencies has already reached a successful
// terminal state.
func (p *Pipeline) dependenciesSatisfied(t *task.Task) bool {
	if p.exec.HandlesDependencies() {
		return true
	}
	for _, dep := range t.TaskDependencies {
		if !dep.State().IsSuccessfulTerminal() {
			return false
		}
	}
	for _, dep := range t.HardDependencies {
		if !dep.State().IsSuccessfulTerminal() {
			return false
		}
	}
	return true
}

// submitReadyTasks submits Pending tasks to the bound executor in
// QueueID order. When Options.SubmitOnlyIfRunnable is set, submission
// stops as soon as the executor reports its queue or pending limits
// are reached, leaving the remaining Pending tasks for a later pass.
func (p *Pipeline) submitReadyTasks(ctx context.Context) error {
	for _, t := range p.Tasks {
		if t.State() != task.Pending || p.HandledTasks[t] {
			continue
		}

		if p.Options.SubmitOnlyIfRunnable && p.atExecutorLimit() {
			break
		}

		p.HandledTasks[t] = true
		if err := p.exec.Submit(ctx, t); err != nil {
			// Submit already drove t to Failed via MarkFailed; a
			// submission-layer error does not abort the whole run.
			continue
		}
	}
	return nil
}

func (p *Pipeline) atExecutorLimit() bool {
	if p.exec.JobsQueuedLimit() && p.exec.QueuedCount() >= p.exec.MaxJobsQueued() {
		return true
	}
	if p.exec.JobsPendingLimit() && p.exec.PendingCount() >= p.exec.MaxJobsPending() {
		return true
	}
	return false
}

func (p *Pipeline) allTerminal() bool {
	for _, t := range p.Tasks {
		if !t.State().IsTerminal() {
			return false
		}
	}
	return true
}

func (p *Pipeline) cancelRemaining(ctx context.Context) {
	_ = p.exec.CancelAll(ctx)
	for _, t := range p.Tasks {
		if !t.State().IsTerminal() {
			t.MarkCanceled()
		}
	}
}

func (p *Pipeline) finish() *Result {
	r := &Result{Success: true}
	terminal := 0
	for _, t := range p.Tasks {
		metrics.RecordTerminal(t.State().String())
		if t.State().IsTerminal() {
			terminal++
		}
		if t.State().IsFailedTerminal() {
			r.Success = false
			r.FailedTasks = append(r.FailedTasks, t)
		}
	}
	metrics.SetTerminalCount(terminal)
	return r
}
