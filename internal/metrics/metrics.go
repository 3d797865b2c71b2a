// Package metrics records tool executions with Prometheus collectors.
//
// The CLI is a short-lived process, so nothing is served over HTTP.
// Collectors live on a private registry and are written to a file in the
// node-exporter textfile format when the command finishes.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for tool runs.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Recorder holds the collectors for one process.
type Recorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	flows    *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchering_tool_runs_total",
				Help: "Number of matchering tool executions by outcome.",
			},
			[]string{"tool", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matchering_tool_duration_seconds",
				Help:    "Wall-clock duration of matchering tool executions.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"tool"},
		),
		flows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchering_flows_total",
				Help: "Number of completed matchering flows by action and result.",
			},
			[]string{"action", "result"},
		),
	}
	r.registry.MustRegister(r.runs, r.duration, r.flows)
	return r
}

// ObserveTool records one tool execution. A nil Recorder is a no-op.
func (r *Recorder) ObserveTool(tool, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(tool, outcome).Inc()
	r.duration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveFlow records the end of a flow. A nil Recorder is a no-op.
func (r *Recorder) ObserveFlow(action, result string) {
	if r == nil {
		return
	}
	r.flows.WithLabelValues(action, result).Inc()
}

// Registry exposes the private registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes all collected metrics to path in the textfile format.
// The write is atomic (temporary file plus rename). An empty path or a nil
// Recorder does nothing.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
