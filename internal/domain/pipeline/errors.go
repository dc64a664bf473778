package pipeline

import "errors"

// Sentinel errors returned by AddTask and Run. Callers check them with
// errors.Is; none of them are ever panicked.
var (
	// ErrProductAlreadyRegistered means two different tasks declare
	// the same product, violating the unique-producer invariant.
	ErrProductAlreadyRegistered = errors.New("pipeline: product already registered by another task")
	// ErrTaskNotInQueue means a hard dependency names a task that was
	// never added to this pipeline.
	ErrTaskNotInQueue = errors.New("pipeline: hard dependency is not registered in this pipeline")
	// ErrDependencyNotAvailable means a task's dependency has no
	// producing task and the artifact itself does not exist, so it can
	// never be satisfied.
	ErrDependencyNotAvailable = errors.New("pipeline: dependency has no producer and does not exist")
	// ErrCyclicDependency means the dataflow graph contains a cycle.
	ErrCyclicDependency = errors.New("pipeline: cyclic dependency detected")
)
