// internal/recommendation/service.go
package recommendation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"handoff-workers/internal/assignment"
	"handoff-workers/internal/common/errors"
	"handoff-workers/internal/common/logger"
	"handoff-workers/internal/common/metrics"
	"handoff-workers/internal/common/observability"
	"handoff-workers/internal/common/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Sources label metrics and logs with the surface that asked for recommendations.
const (
	SourceWorker = "worker"
	SourceAPI    = "api"
)

// FieldErrorsKey is the StandardError metadata key holding schema violations.
const FieldErrorsKey = "fieldErrors"

// Result is one engine run.
type Result struct {
	RunID           string                      `json:"runId"`
	GeneratedAt     time.Time                   `json:"generatedAt"`
	Recommendations []assignment.Recommendation `json:"recommendations"`
	Summary         assignment.Summary          `json:"summary"`
}

// Service validates recommendation requests and runs the engine over them.
type Service struct {
	engine    *assignment.Engine
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewService(engine *assignment.Engine, obs *observability.Observability, log logger.Logger) *Service {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Service{
		engine:    engine,
		validator: validation.MustLoad(validation.SchemaRecommendationRequest),
		obs:       obs,
		logger:    log,
		now:       time.Now,
	}
}

// Decode validates body against the request schema and decodes it. Schema violations are
// returned as ASSIGNMENT_INPUT_INVALID with the field errors under FieldErrorsKey.
func (s *Service) Decode(body []byte) (*assignment.Request, error) {
	result, err := s.validator.ValidateJSON(body)
	if err != nil {
		return nil, errors.NewAssignmentInputInvalidError(fmt.Sprintf("malformed request body: %v", err))
	}
	if !result.Valid {
		return nil, errors.NewAssignmentInputInvalidError(result.Summary()).
			WithMetadata(FieldErrorsKey, result.Errors)
	}

	var req assignment.Request
	if err := json.Unmarshal(body, &req); err != nil {
		if stderrors.Is(err, assignment.ErrUnknownAction) {
			return nil, errors.NewRuleSetInvalidError("", err)
		}
		return nil, errors.NewAssignmentInputInvalidError(fmt.Sprintf("decode request: %v", err))
	}
	return &req, nil
}

// Generate decodes body and runs the engine. It returns a TIMEOUT error as soon as ctx
// expires, leaving the engine run to finish in the background.
func (s *Service) Generate(ctx context.Context, source string, body []byte) (*Result, error) {
	req, err := s.Decode(body)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTimeoutError("assignment-engine", err)
	}

	done := make(chan *Result, 1)
	go func() {
		done <- s.Run(ctx, source, req)
	}()

	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return nil, errors.NewTimeoutError("assignment-engine", ctx.Err())
	}
}

// Run scores an already decoded request. It never fails; an account with no eligible rep
// gets an empty list.
func (s *Service) Run(ctx context.Context, source string, req *assignment.Request) *Result {
	ctx, span := s.obs.StartSpan(ctx, "assignment.recommend",
		attribute.String("source", source),
		attribute.Int("accounts", len(req.Accounts)),
		attribute.Int("reps", len(req.Reps)),
		attribute.Int("rules", len(req.Rules)),
	)
	defer span.End()

	start := time.Now()
	recs, summary := s.engine.RecommendWithSummary(req)
	elapsed := time.Since(start)

	metrics.RecordEngineRun(source, summary.Accounts, summary.AccountsWithoutCandidates, summary.ExcludedPairs, elapsed)
	s.obs.RecordEngineRun(ctx, source)
	span.SetAttributes(
		attribute.Int("accounts_without_candidates", summary.AccountsWithoutCandidates),
		attribute.Int("excluded_pairs", summary.ExcludedPairs),
	)

	result := &Result{
		RunID:           uuid.NewString(),
		GeneratedAt:     s.now().UTC(),
		Recommendations: recs,
		Summary:         summary,
	}

	s.logger.Info("recommendations generated", map[string]interface{}{
		"runId":                     result.RunID,
		"source":                    source,
		"accounts":                  summary.Accounts,
		"accountsWithoutCandidates": summary.AccountsWithoutCandidates,
		"scoredPairs":               summary.ScoredPairs,
		"excludedPairs":             summary.ExcludedPairs,
		"elapsedMs":                 elapsed.Milliseconds(),
	})
	return result
}
