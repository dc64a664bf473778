package cluster

import "github.com/noppelmax/depio-go/internal/domain/task"

// externalStatus is the fixed vocabulary an external cluster job
// system reports back. The concrete service this maps to is out of
// scope; only the mapping itself is specified.
type externalStatus string

const (
	statusConfiguring externalStatus = "CONFIGURING"
	statusPending     externalStatus = "PENDING"
	statusRunning     externalStatus = "RUNNING"
	statusCompleted   externalStatus = "COMPLETED"
	statusFailed      externalStatus = "FAILED"
	statusTimeout     externalStatus = "TIMEOUT"
	statusOutOfMemory externalStatus = "OUT_OF_MEMORY"
	statusCanceled    externalStatus = "CANCELED"
)

// toTaskState maps an externalStatus onto the task state it drives.
// TIMEOUT and OUT_OF_MEMORY both resolve to Failed: the pipeline's own
// state machine has no separate terminal category for them, matching
// spec.md's decision not to model resource-exhaustion as its own state.
func toTaskState(s externalStatus) (task.State, bool) {
	switch s {
	case statusConfiguring, statusPending:
		return task.Hold, true
	case statusRunning:
		return task.Running, true
	case statusCompleted:
		return task.Finished, true
	case statusFailed, statusTimeout, statusOutOfMemory:
		return task.Failed, true
	case statusCanceled:
		return task.Canceled, true
	default:
		return task.Unknown, false
	}
}
