// internal/common/metrics/metrics.go
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

	AssignmentRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_recommendations_total",
			Help: "Accounts processed by the assignment engine, by whether any rep was eligible",
		},
		[]string{"source", "outcome"},
	)

	AssignmentIneligibleReps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_ineligible_reps_total",
			Help: "Account/rep pairs excluded by assignment rules",
		},
		[]string{"source"},
	)

	AssignmentEngineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assignment_engine_duration_seconds",
			Help:    "Duration of a single assignment engine run",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"source"},
	)

	AssignmentRulesCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_rules_cache_total",
			Help: "Rule-set cache lookups by result",
		},
		[]string{"result"},
	)
)

// JobTimer tracks one job from activation to completion or failure.
type JobTimer struct {
	taskType string
	start    time.Time
}

// StartJob marks a job active for taskType.
func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{taskType: taskType, start: time.Now()}
}

// Complete records a successful job.
func (t *JobTimer) Complete() {
	t.finish()
	WorkerJobsCompleted.WithLabelValues(t.taskType).Inc()
}

// Fail records a failed job with its error code.
func (t *JobTimer) Fail(errorCode string) {
	t.finish()
	WorkerJobsFailed.WithLabelValues(t.taskType, errorCode).Inc()
}

func (t *JobTimer) finish() {
	WorkerJobsActive.WithLabelValues(t.taskType).Dec()
	WorkerJobDuration.WithLabelValues(t.taskType).Observe(time.Since(t.start).Seconds())
}

// RecordEngineRun records the counters of one engine run. source is "worker" or "api".
func RecordEngineRun(source string, accounts, accountsWithoutCandidates, excludedPairs int, elapsed time.Duration) {
	AssignmentEngineDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	AssignmentRecommendations.WithLabelValues(source, "ranked").Add(float64(accounts - accountsWithoutCandidates))
	AssignmentRecommendations.WithLabelValues(source, "no_candidates").Add(float64(accountsWithoutCandidates))
	AssignmentIneligibleReps.WithLabelValues(source).Add(float64(excludedPairs))
}
