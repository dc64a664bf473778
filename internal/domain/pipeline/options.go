package pipeline

import "time"

// Options controls the pipeline's run loop and display, mirroring the
// source project's constructor keyword arguments.
type Options struct {
	// Name labels the pipeline in logs and the status display.
	Name string
	// ClearScreen clears the terminal between display refreshes.
	ClearScreen bool
	// HideSuccessfulTerminatedTasks omits Finished/Skipped tasks from
	// the status table once they're done, keeping the display focused
	// on what's still in flight.
	HideSuccessfulTerminatedTasks bool
	// SubmitOnlyIfRunnable holds back submission of additional ready
	// tasks once the bound executor's queue/pending limits are hit,
	// instead of submitting and letting the executor itself queue them.
	SubmitOnlyIfRunnable bool
	// Quiet suppresses the status display entirely; only exit-time
	// failure output is printed.
	Quiet bool
	// RefreshPeriod is how long the loop sleeps between scheduling
	// passes.
	RefreshPeriod time.Duration
}

// DefaultOptions returns the same name and refresh period that
// config.Load defaults to. New does not apply it; callers pass it
// explicitly.
func DefaultOptions() Options {
	return Options{
		Name:          "pipeline",
		RefreshPeriod: 200 * time.Millisecond,
	}
}
