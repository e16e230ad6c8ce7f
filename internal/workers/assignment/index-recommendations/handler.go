// internal/workers/assignment/index-recommendations/handler.go
package indexrecommendations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"handoff-workers/internal/common/camunda"
	"handoff-workers/internal/common/database"
	"handoff-workers/internal/common/errors"
	"handoff-workers/internal/common/logger"
	"handoff-workers/internal/common/observability"
	"handoff-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "index-recommendations"
)

// Indexer is the bulk write the handler needs from Elasticsearch.
type Indexer interface {
	BulkIndex(ctx context.Context, index string, docs []database.BulkDocument) (database.BulkResult, error)
}

type Handler struct {
	config    *Config
	indexer   Indexer
	validator *validation.Validator
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewHandler(config *Config, indexer Indexer, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Handler{
		config:    config,
		indexer:   indexer,
		validator: validation.MustLoad(validation.SchemaIndexInput),
		errors:    errors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
		now:       time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	run := camunda.StartJob(TaskType, h.obs)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.decode([]byte(job.Variables))
	if err != nil {
		h.failJob(client, job, run, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, run, err)
		return
	}

	h.completeJob(client, job, run, output)
}

func (h *Handler) decode(variables []byte) (*Input, error) {
	result, err := h.validator.ValidateJSON(variables)
	if err != nil {
		return nil, errors.NewAssignmentInputInvalidError(fmt.Sprintf("parse input: %v", err))
	}
	if !result.Valid {
		return nil, errors.NewAssignmentInputInvalidError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, errors.NewAssignmentInputInvalidError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// execute writes every document in one bulk call. Per-document failures are reported in
// the output; the job fails only when the request itself fails or nothing was written.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	docs := h.buildDocuments(input)

	ctx, span := h.obs.StartSpan(ctx, "assignment.index",
		attribute.String("index", h.config.Index),
		attribute.Int("documents", len(docs)),
	)
	defer span.End()

	result, err := h.indexer.BulkIndex(ctx, h.config.Index, docs)
	if err != nil {
		return nil, errors.NewRecommendationIndexFailedError(h.config.Index, err)
	}
	if result.Indexed == 0 && result.Failed > 0 {
		return nil, errors.NewRecommendationIndexFailedError(h.config.Index,
			fmt.Errorf("all %d documents rejected", result.Failed)).
			WithMetadata("failures", result.Failures)
	}

	if result.Failed > 0 {
		h.logger.Warn("some recommendation documents were rejected", map[string]interface{}{
			"runId":    input.RunID,
			"failed":   result.Failed,
			"failures": result.Failures,
		})
	}
	h.logger.Info("recommendations indexed", map[string]interface{}{
		"runId":   input.RunID,
		"index":   h.config.Index,
		"indexed": result.Indexed,
		"failed":  result.Failed,
	})

	output := &Output{Indexed: result.Indexed, Failed: result.Failed}
	if result.Failed > 0 {
		output.Failures = result.Failures
	}
	return output, nil
}

func (h *Handler) buildDocuments(input *Input) []database.BulkDocument {
	generatedAt := h.now().UTC()
	if input.GeneratedAt != nil {
		generatedAt = input.GeneratedAt.UTC()
	}

	var docs []database.BulkDocument
	for _, rec := range input.Recommendations {
		base := Document{
			RunID:          input.RunID,
			OrganizationID: input.OrganizationID,
			AccountID:      rec.AccountID,
			AccountName:    rec.AccountName,
			GeneratedAt:    generatedAt,
		}

		if len(rec.Recommendations) == 0 {
			docs = append(docs, database.BulkDocument{ID: documentID(input.RunID, rec.AccountID, 0), Body: base})
			continue
		}

		for i, candidate := range rec.Recommendations {
			doc := base
			breakdown := candidate.Breakdown
			doc.Rank = i + 1
			doc.HasCandidate = true
			doc.RepID = candidate.RepID
			doc.RepName = candidate.RepName
			doc.Score = candidate.Score
			doc.Breakdown = &breakdown
			doc.RuleBonus = candidate.RuleBonus
			doc.MatchedRules = candidate.MatchedRules
			docs = append(docs, database.BulkDocument{ID: documentID(input.RunID, rec.AccountID, doc.Rank), Body: doc})
		}
	}
	return docs
}

// documentID is stable per run so a retried job overwrites instead of duplicating.
func documentID(runID, accountID string, rank int) string {
	return fmt.Sprintf("%s:%s:%d", runID, accountID, rank)
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
