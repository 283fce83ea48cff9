// Package metrics exposes the Prometheus collectors of the worker manager and
// adapts them to the metric sinks of the query engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ResolutionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_attempts_total",
			Help: "Reference resolution attempts by route",
		},
		[]string{"route"},
	)

	ResolutionPatternMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_pattern_matches_total",
			Help: "Entities filled from explicit mentions in the current utterance",
		},
		[]string{"slot"},
	)

	ResolutionHistoryFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_history_fills_total",
			Help: "Entities filled from conversation history",
		},
		[]string{"slot"},
	)

	ResolutionClarifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_clarifications_total",
			Help: "Clarification prompts issued",
		},
	)

	ResolutionLatencyBudgetExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_latency_budget_exceeded_total",
			Help: "Resolutions that took longer than the configured budget",
		},
	)

	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compiler_duration_seconds",
			Help:    "Query compilation duration by method",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	CompileTemplateMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compiler_template_misses_total",
			Help: "Template attempts that produced no valid query",
		},
		[]string{"reason"},
	)

	CompileAssistedInvalid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compiler_assisted_invalid_total",
			Help: "Assisted candidates rejected by the query validator",
		},
	)

	ResultCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_access_cache_lookups_total",
			Help: "Result cache lookups by task type and outcome",
		},
		[]string{"task_type", "result"},
	)
)

// ResolverSink records reference resolver events.
type ResolverSink struct{}

func (ResolverSink) ResolutionAttempt(route string) {
	ResolutionAttempts.WithLabelValues(route).Inc()
}

func (ResolverSink) PatternMatch(slot string) {
	ResolutionPatternMatches.WithLabelValues(slot).Inc()
}

func (ResolverSink) HistoryResolution(slot string) {
	ResolutionHistoryFills.WithLabelValues(slot).Inc()
}

func (ResolverSink) ClarificationIssued()   { ResolutionClarifications.Inc() }
func (ResolverSink) LatencyBudgetExceeded() { ResolutionLatencyBudgetExceeded.Inc() }

// OrchestratorSink records compilation events.
type OrchestratorSink struct{}

func (OrchestratorSink) CompileFinished(method string, d time.Duration) {
	CompileDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (OrchestratorSink) TemplateMiss(reason string) {
	CompileTemplateMisses.WithLabelValues(reason).Inc()
}

func (OrchestratorSink) AssistedValidationFailed() { CompileAssistedInvalid.Inc() }

// ObserveJob records the outcome of a single job. errorCode is empty on success.
func ObserveJob(taskType string, started time.Time, errorCode string) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
