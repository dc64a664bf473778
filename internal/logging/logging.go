// Package logging sets up structured logging for the pipeline, one
// notch up from the teacher's plain fmt.Println status lines: a
// long-running scheduler benefits from structured task-lifecycle
// fields the way the teacher's short-lived CLI commands never needed.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

// New returns a slog.Logger writing JSON lines to os.Stderr at level,
// with "component" set to name on every record.
func New(name string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("component", name)
}

// ParseLevel maps the config's log_level string onto a slog.Level,
// defaulting to Info for an unrecognized value.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TaskEvent logs a task lifecycle transition with consistent fields.
// A nil logger (no logger configured for this run) is a no-op.
func TaskEvent(logger *slog.Logger, taskName, state string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("task state transition", "task", taskName, "state", state, "error", err)
		return
	}
	logger.Info("task state transition", "task", taskName, "state", state)
}

var (
	globalMu sync.Mutex
	global   *slog.Logger
)

// InitGlobal installs logger as the process-wide logger task state
// transitions are reported through, mirroring internal/metrics'
// registry-singleton + Record*-style convenience for call sites (here,
// internal/domain/task) that cannot have a logger threaded into them
// without reaching across the domain/ambient boundary.
func InitGlobal(logger *slog.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = logger
}

// Global returns the process-wide logger, or nil if InitGlobal was
// never called.
func Global() *slog.Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}
