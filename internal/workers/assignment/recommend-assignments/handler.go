// internal/workers/assignment/recommend-assignments/handler.go
package recommendassignments

import (
	"context"

	"handoff-workers/internal/assignment"
	"handoff-workers/internal/common/camunda"
	"handoff-workers/internal/common/errors"
	"handoff-workers/internal/common/logger"
	"handoff-workers/internal/common/observability"
	"handoff-workers/internal/recommendation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "recommend-assignments"
)

type Handler struct {
	config  *Config
	service *recommendation.Service
	errors  *errors.ErrorHandler
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHandler(config *Config, service *recommendation.Service, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		service: service,
		errors:  errors.NewErrorHandler(log),
		obs:     obs,
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	run := camunda.StartJob(TaskType, h.obs)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	req, err := h.service.Decode([]byte(job.Variables))
	if err != nil {
		h.failJob(client, job, run, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, req)
	if err != nil {
		h.failJob(client, job, run, err)
		return
	}

	h.completeJob(client, job, run, output)
}

// execute runs the engine but gives up when ctx expires first.
func (h *Handler) execute(ctx context.Context, req *assignment.Request) (*Output, error) {
	done := make(chan *recommendation.Result, 1)
	go func() {
		done <- h.service.Run(ctx, recommendation.SourceWorker, req)
	}()

	select {
	case result := <-done:
		return &Output{
			RunID:           result.RunID,
			GeneratedAt:     result.GeneratedAt,
			Recommendations: result.Recommendations,
			Summary:         result.Summary,
		}, nil
	case <-ctx.Done():
		return nil, errors.NewTimeoutError("assignment-engine", ctx.Err())
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, run *camunda.JobRun, output *Output) {
	ctx := context.Background()
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(client, job, run, errors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		run.Fail(ctx, string(errors.ErrCodeExternalService))
		return
	}
	run.Complete(ctx)
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, run *camunda.JobRun, err error) {
	ctx := context.Background()
	run.Fail(ctx, string(errors.Normalize(err).Code))
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, req *assignment.Request) (*Output, error) {
	return h.execute(ctx, req)
}
