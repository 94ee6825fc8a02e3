package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EFLFetchRequestsTotal counts EFL-document fetch attempts per supplier,
	// the pipeline's analog of the teacher's per-provider request counter.
	EFLFetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planengine_efl_fetch_requests_total",
			Help: "Total number of EFL document fetch attempts per supplier",
		},
		[]string{"supplier"},
	)

	EFLFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planengine_efl_fetch_duration_seconds",
			Help:    "EFL document fetch duration in seconds per supplier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"supplier"},
	)

	EFLFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planengine_efl_fetch_errors_total",
			Help: "Total number of failed EFL document fetches per supplier and reason",
		},
		[]string{"supplier", "reason"},
	)

	// PipelineRunsTotal counts completed per-home orchestrator runs by the
	// status they finished in (spec §3's JobStatus).
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planengine_pipeline_runs_total",
			Help: "Total number of per-home pipeline runs by status and trigger reason",
		},
		[]string{"status", "reason"},
	)

	// jobRunsTotal and jobDurationSeconds back UpdateJobMetrics below: the
	// cron worker's bookkeeping for its named background jobs (refresh
	// sweep, batch sweep), mirroring the teacher's per-provider request
	// counters but scoped to job name instead of provider key.
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planengine_job_runs_total",
			Help: "Total number of scheduled job runs by job name and outcome",
		},
		[]string{"job", "outcome"},
	)

	jobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planengine_job_duration_seconds",
			Help:    "Scheduled job run duration in seconds by job name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// RequestsTotal, RequestDurationSeconds, and RequestErrorsTotal are the
	// HTTP-facing counters the teacher kept per provider; here they're keyed
	// by API path instead.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planengine_http_requests_total",
			Help: "Total number of HTTP API requests by path",
		},
		[]string{"path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planengine_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planengine_http_request_errors_total",
			Help: "Total number of HTTP API request errors by path and status",
		},
		[]string{"path", "status"},
	)
)

// UpdateJobMetrics records one scheduled-job run's outcome and duration.
// Called by internal/cron's worker and batch loops after each sweep.
func UpdateJobMetrics(jobName string, started time.Time, runErr error) {
	outcome := "success"
	if runErr != nil {
		outcome = "failure"
	}
	jobRunsTotal.WithLabelValues(jobName, outcome).Inc()
	jobDurationSeconds.WithLabelValues(jobName).Observe(time.Since(started).Seconds())
}
