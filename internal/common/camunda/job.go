// internal/common/camunda/job.go
package camunda

import (
	"context"
	"time"

	"handoff-workers/internal/common/metrics"
	"handoff-workers/internal/common/observability"
)

// JobRun records one job activation in both the Prometheus and OpenTelemetry metrics.
type JobRun struct {
	taskType string
	timer    *metrics.JobTimer
	obs      *observability.Observability
	start    time.Time
}

// StartJob begins tracking a job. obs may be nil.
func StartJob(taskType string, obs *observability.Observability) *JobRun {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &JobRun{
		taskType: taskType,
		timer:    metrics.StartJob(taskType),
		obs:      obs,
		start:    time.Now(),
	}
}

func (r *JobRun) Complete(ctx context.Context) {
	r.timer.Complete()
	r.record(ctx, "completed")
}

func (r *JobRun) Fail(ctx context.Context, errorCode string) {
	r.timer.Fail(errorCode)
	r.record(ctx, "failed")
}

func (r *JobRun) record(ctx context.Context, status string) {
	r.obs.RecordJobProcessed(ctx, r.taskType, status)
	r.obs.RecordJobDuration(ctx, r.taskType, time.Since(r.start), status)
}
