// Package metrics exposes Prometheus counters and gauges for task
// lifecycle events, grounded on the teacher's registry-singleton +
// package-level Record* function collector pattern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "depio"
	subsystem = "pipeline"
)

// Collector bundles every metric this package records.
type Collector struct {
	TasksTotal        *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
	TasksInFlight     prometheus.Gauge
	TasksTerminal     prometheus.Gauge
	PropagationPasses prometheus.Counter
}

// NewCollector builds a Collector and registers it against reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_total",
			Help:      "Total tasks that reached a terminal state, by final state.",
		}, []string{"state"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of a task's Run call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		TasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_in_flight",
			Help:      "Tasks currently in the Running state.",
		}),
		TasksTerminal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_terminal",
			Help:      "Tasks that have reached any terminal state in the current run.",
		}),
		PropagationPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "propagation_passes_total",
			Help:      "Fixed-point iterations the failure-propagation pass has run.",
		}),
	}
	reg.MustRegister(c.TasksTotal, c.TaskDuration, c.TasksInFlight, c.TasksTerminal, c.PropagationPasses)
	return c
}

var (
	globalMu sync.Mutex
	global   *Collector
)

// InitGlobal registers a process-wide Collector against
// prometheus.DefaultRegisterer, the convenience singleton the teacher's
// own metrics package exposes for call sites that don't want to thread
// a Collector through every layer.
func InitGlobal() *Collector {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = NewCollector(prometheus.DefaultRegisterer)
	}
	return global
}

// Global returns the process-wide Collector, or nil if InitGlobal was
// never called.
func Global() *Collector {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// RecordTerminal records a task ending in state, using the global
// collector if one has been initialized; a no-op otherwise.
func RecordTerminal(state string) {
	c := Global()
	if c == nil {
		return
	}
	c.TasksTotal.WithLabelValues(state).Inc()
}

// RecordTaskDuration records how long a task's Run call took.
func RecordTaskDuration(taskName string, seconds float64) {
	c := Global()
	if c == nil {
		return
	}
	c.TaskDuration.WithLabelValues(taskName).Observe(seconds)
}

// IncInFlight records a task entering the Running state.
func IncInFlight() {
	c := Global()
	if c == nil {
		return
	}
	c.TasksInFlight.Inc()
}

// DecInFlight records a task leaving the Running state.
func DecInFlight() {
	c := Global()
	if c == nil {
		return
	}
	c.TasksInFlight.Dec()
}

// SetTerminalCount reports how many tasks have reached a terminal
// state in the current run.
func SetTerminalCount(n int) {
	c := Global()
	if c == nil {
		return
	}
	c.TasksTerminal.Set(float64(n))
}

// IncPropagationPass records one fixed-point iteration of the
// failure-propagation pass.
func IncPropagationPass() {
	c := Global()
	if c == nil {
		return
	}
	c.PropagationPasses.Inc()
}
