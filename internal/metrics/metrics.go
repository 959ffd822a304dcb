// Package metrics collects per-run counters and flushes them to a
// Prometheus textfile next to the run's logs.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adw"

// Recorder holds the collectors for one process. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	agentCalls    *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
	agentCost     *prometheus.CounterVec
	stageResults  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	retryAttempts *prometheus.CounterVec
	findings      *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
}

// New creates a Recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		agentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocations_total",
			Help:      "Agent invocations by slash command and outcome.",
		}, []string{"command", "outcome"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of agent invocations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"command"}),
		agentCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cost_usd_total",
			Help:      "Cost reported by the agent result record.",
		}, []string{"command"}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Stage runs by result.",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Wall time of stage runs.",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Check attempts made by bounded retry loops.",
		}, []string{"loop"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "findings_total",
			Help:      "Review findings by severity.",
		}, []string{"severity"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "resolutions_total",
			Help:      "Resolution attempts by loop and result.",
		}, []string{"loop", "result"}),
	}

	reg.MustRegister(
		r.agentCalls, r.agentDuration, r.agentCost,
		r.stageResults, r.stageDuration,
		r.retryAttempts, r.findings, r.resolutions,
	)

	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}

	return r.registry
}

// ObserveAgent records one agent invocation.
func (r *Recorder) ObserveAgent(command string, success bool, d time.Duration, costUSD float64) {
	if r == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.agentCalls.WithLabelValues(command, outcome).Inc()
	r.agentDuration.WithLabelValues(command).Observe(d.Seconds())
	if costUSD > 0 {
		r.agentCost.WithLabelValues(command).Add(costUSD)
	}
}

// ObserveStage records the end of a stage run.
func (r *Recorder) ObserveStage(stage string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	r.stageResults.WithLabelValues(stage, result).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncAttempt counts one check attempt of a retry loop.
func (r *Recorder) IncAttempt(loop string) {
	if r == nil {
		return
	}
	r.retryAttempts.WithLabelValues(loop).Inc()
}

// AddResolutions counts resolved and failed findings of one attempt.
func (r *Recorder) AddResolutions(loop string, resolved, failed int) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(loop, "resolved").Add(float64(resolved))
	r.resolutions.WithLabelValues(loop, "failed").Add(float64(failed))
}

// IncFinding counts a review finding.
func (r *Recorder) IncFinding(severity string) {
	if r == nil {
		return
	}
	r.findings.WithLabelValues(severity).Inc()
}

// WriteTextfile gathers every metric into path in the Prometheus text
// format. The write goes through a temp file so readers never see a
// partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
