package task

// State is the lifecycle status of a Task within a single pipeline run.
type State int

const (
	// Waiting means the task's dependencies have not all produced
	// their artifacts yet.
	Waiting State = iota
	// Pending means every dependency is satisfied and the task is
	// ready for the executor, but has not been submitted yet.
	Pending
	// Running means the task has been submitted and its job (inline
	// call, pool worker, or cluster job) is in flight.
	Running
	// Finished means the task ran and its products were verified.
	Finished
	// Skipped means the task's products already exist and are newer
	// than every dependency, so it was not run.
	Skipped
	// Failed means the task raised an error, failed its product
	// verification, found a path dependency missing before running, or
	// could not be submitted or tracked by its executor.
	Failed
	// DepFailed means a dependency of this task ended in a failed
	// terminal state, so this task will never run.
	DepFailed
	// Canceled means the pipeline canceled this task's job before it
	// reached a terminal state on its own, because the run's context
	// was canceled, or an external cluster job reported itself canceled.
	Canceled
	// Hold means an executor (the cluster backend) reports the job is
	// queued externally but not yet running; not terminal.
	Hold
	// Unknown means the executor could not classify the job's state.
	// Not terminal: the scheduler keeps polling.
	Unknown
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	case Skipped:
		return "SKIPPED"
	case Failed:
		return "FAILED"
	case DepFailed:
		return "DEPFAILED"
	case Canceled:
		return "CANCELED"
	case Hold:
		return "HOLD"
	case Unknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the state is one the scheduler will never
// move the task out of on its own.
func (s State) IsTerminal() bool {
	switch s {
	case Finished, Skipped, Failed, DepFailed, Canceled:
		return true
	default:
		return false
	}
}

// IsSuccessfulTerminal reports whether the state counts toward a
// successful pipeline run.
func (s State) IsSuccessfulTerminal() bool {
	return s == Finished || s == Skipped
}

// IsFailedTerminal reports whether the state counts as a failure for
// the purposes of exit-code selection and dependent propagation.
func (s State) IsFailedTerminal() bool {
	return s == Failed || s == DepFailed || s == Canceled
}

// validTransitions enumerates the edges the state machine allows.
// Hold and Unknown are reachable from Running and from each other,
// matching a cluster poll loop that can lose and regain classification
// of an external job at any point before it reaches a terminal state.
var validTransitions = map[State]map[State]bool{
	Waiting:   {Pending: true, Skipped: true, DepFailed: true, Canceled: true},
	Pending:   {Running: true, Skipped: true, Failed: true, DepFailed: true, Canceled: true},
	Running:   {Finished: true, Failed: true, Hold: true, Unknown: true, Canceled: true},
	Hold:      {Running: true, Unknown: true, Failed: true, Finished: true, Canceled: true},
	Unknown:   {Running: true, Hold: true, Failed: true, Finished: true, Canceled: true},
	Finished:  {},
	Skipped:   {},
	Failed:    {},
	DepFailed: {},
	Canceled:  {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// state-machine edge.
func (s State) CanTransitionTo(next State) bool {
	return validTransitions[s][next]
}
