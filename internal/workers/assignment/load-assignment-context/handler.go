// internal/workers/assignment/load-assignment-context/handler.go
package loadassignmentcontext

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"handoff-workers/internal/assignment"
	"handoff-workers/internal/common/camunda"
	"handoff-workers/internal/common/errors"
	"handoff-workers/internal/common/logger"
	"handoff-workers/internal/common/metrics"
	"handoff-workers/internal/common/observability"
	"handoff-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "load-assignment-context"

	rulesCachePrefix = "assignment:rules:"
)

const (
	accountsQuery = `
		SELECT id, name, arr, industry, geography, health_score, segment
		FROM accounts
		WHERE organization_id = $1 AND id = ANY($2)`

	repsQuery = `
		SELECT id, name, capacity, specialties
		FROM users
		WHERE organization_id = $1 AND role = 'rep' AND is_active = true
		ORDER BY name, id`

	repsByIDQuery = `
		SELECT id, name, capacity, specialties
		FROM users
		WHERE organization_id = $1 AND role = 'rep' AND id = ANY($2)`

	portfolioQuery = `
		SELECT owner_id, id, name, arr, industry, geography, health_score, segment
		FROM accounts
		WHERE organization_id = $1 AND owner_id = ANY($2) AND NOT (id = ANY($3))
		ORDER BY owner_id, id`

	rulesQuery = `
		SELECT id, name, is_active, priority, conditions
		FROM assignment_rules
		WHERE organization_id = $1 AND is_active = true
		ORDER BY priority, id`
)

type Handler struct {
	config    *Config
	db        *sql.DB
	redis     *redis.Client
	validator *validation.Validator
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redisClient *redis.Client, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		db:        db,
		redis:     redisClient,
		validator: validation.MustLoad(validation.SchemaLoadContextInput),
		errors:    errors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	accounts, err := h.loadAccounts(ctx, input.OrganizationID, input.AccountIDs)
	if err != nil {
		return nil, err
	}

	reps, err := h.loadReps(ctx, input.OrganizationID, input.RepIDs)
	if err != nil {
		return nil, err
	}

	portfolios, err := h.loadPortfolios(ctx, input.OrganizationID, reps, input.AccountIDs)
	if err != nil {
		return nil, err
	}

	rules, source, err := h.loadRules(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(reps))
	for _, rep := range reps {
		counts[rep.ID] = len(portfolios[rep.ID])
	}

	h.logger.Info("assignment context loaded", map[string]interface{}{
		"organizationId": input.OrganizationID,
		"accounts":       len(accounts),
		"reps":           len(reps),
		"rules":          len(rules),
		"ruleSetSource":  source,
	})

	return &Output{
		Request: assignment.Request{
			Accounts:           accounts,
			Reps:               reps,
			RepAccountCounts:   counts,
			RepCurrentAccounts: portfolios,
			Rules:              rules,
		},
		RuleSetSource: source,
	}, nil
}

// loadAccounts returns the accounts in the order they were requested.
func (h *Handler) loadAccounts(ctx context.Context, orgID string, ids []string) ([]assignment.Account, error) {
	rows, err := h.db.QueryContext(ctx, accountsQuery, orgID, pq.Array(ids))
	if err != nil {
		return nil, queryError(ctx, "accounts", err)
	}
	defer rows.Close()

	byID := make(map[string]assignment.Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.NewAssignmentContextLoadFailedError("postgres", err)
		}
		byID[account.ID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "accounts", err)
	}

	accounts := make([]assignment.Account, 0, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		account, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		accounts = append(accounts, account)
	}
	if len(missing) > 0 {
		return nil, errors.NewAssignmentContextNotFoundError("accounts not found: " + strings.Join(missing, ", ")).
			WithMetadata("missingAccountIds", missing)
	}
	return accounts, nil
}

// loadReps returns the organization's active reps, or exactly repIDs in the given order.
func (h *Handler) loadReps(ctx context.Context, orgID string, repIDs []string) ([]assignment.Rep, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(repIDs) > 0 {
		rows, err = h.db.QueryContext(ctx, repsByIDQuery, orgID, pq.Array(repIDs))
	} else {
		rows, err = h.db.QueryContext(ctx, repsQuery, orgID)
	}
	if err != nil {
		return nil, queryError(ctx, "reps", err)
	}
	defer rows.Close()

	reps := []assignment.Rep{}
	for rows.Next() {
		var (
			rep  assignment.Rep
			name sql.NullString
		)
		if err := rows.Scan(&rep.ID, &name, &rep.Capacity, pq.Array(&rep.Specialties)); err != nil {
			return nil, errors.NewAssignmentContextLoadFailedError("postgres", err)
		}
		rep.Name = name.String
		reps = append(reps, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "reps", err)
	}

	if len(repIDs) == 0 {
		return reps, nil
	}
	position := make(map[string]int, len(repIDs))
	for i, id := range repIDs {
		if _, ok := position[id]; !ok {
			position[id] = i
		}
	}
	sort.SliceStable(reps, func(i, j int) bool {
		return position[reps[i].ID] < position[reps[j].ID]
	})
	return reps, nil
}

func (h *Handler) loadPortfolios(ctx context.Context, orgID string, reps []assignment.Rep, handoffIDs []string) (map[string][]assignment.Account, error) {
	portfolios := make(map[string][]assignment.Account, len(reps))
	if len(reps) == 0 {
		return portfolios, nil
	}

	repIDs := make([]string, 0, len(reps))
	for _, rep := range reps {
		repIDs = append(repIDs, rep.ID)
	}

	rows, err := h.db.QueryContext(ctx, portfolioQuery, orgID, pq.Array(repIDs), pq.Array(handoffIDs))
	if err != nil {
		return nil, queryError(ctx, "portfolios", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID string
		account, err := scanAccount(rows, &ownerID)
		if err != nil {
			return nil, errors.NewAssignmentContextLoadFailedError("postgres", err)
		}
		portfolios[ownerID] = append(portfolios[ownerID], account)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "portfolios", err)
	}
	return portfolios, nil
}

// loadRules reads the rule set from the cache, falling back to Postgres. Cache errors
// never fail the job.
func (h *Handler) loadRules(ctx context.Context, orgID string) ([]assignment.Rule, string, error) {
	key := rulesCachePrefix + orgID

	if h.redis != nil {
		cached, err := h.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			rules, decodeErr := assignment.DecodeRules(cached)
			if decodeErr == nil {
				metrics.AssignmentRulesCache.WithLabelValues("hit").Inc()
				return rules, RuleSetSourceCache, nil
			}
			metrics.AssignmentRulesCache.WithLabelValues("error").Inc()
			h.logger.Warn("discarding unreadable cached rule set", map[string]interface{}{
				"organizationId": orgID,
				"error":          decodeErr.Error(),
			})
		case stderrors.Is(err, redis.Nil):
			metrics.AssignmentRulesCache.WithLabelValues("miss").Inc()
		default:
			metrics.AssignmentRulesCache.WithLabelValues("error").Inc()
			h.logger.Warn("rule cache unavailable, reading from database", map[string]interface{}{
				"organizationId": orgID,
				"error":          err.Error(),
			})
		}
	}

	rules, err := h.queryRules(ctx, orgID)
	if err != nil {
		return nil, "", err
	}

	if h.redis != nil {
		data, err := json.Marshal(rules)
		if err == nil {
			err = h.redis.Set(ctx, key, data, h.config.CacheTTL).Err()
		}
		if err != nil {
			h.logger.Warn("failed to cache rule set", map[string]interface{}{
				"organizationId": orgID,
				"error":          err.Error(),
			})
		}
	}
	return rules, RuleSetSourceDatabase, nil
}

func (h *Handler) queryRules(ctx context.Context, orgID string) ([]assignment.Rule, error) {
	rows, err := h.db.QueryContext(ctx, rulesQuery, orgID)
	if err != nil {
		return nil, queryError(ctx, "rules", err)
	}
	defer rows.Close()

	rules := []assignment.Rule{}
	for rows.Next() {
		var (
			rule       assignment.Rule
			name       sql.NullString
			conditions []byte
		)
		if err := rows.Scan(&rule.ID, &name, &rule.IsActive, &rule.Priority, &conditions); err != nil {
			return nil, errors.NewAssignmentContextLoadFailedError("postgres", err)
		}
		rule.Name = name.String

		rule.Conditions, err = assignment.DecodeConditions(conditions)
		if err != nil {
			return nil, errors.NewRuleSetInvalidError(rule.ID, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "rules", err)
	}
	return rules, nil
}

// scanAccount scans an account row, optionally preceded by extra leading columns.
func scanAccount(rows *sql.Rows, leading ...interface{}) (assignment.Account, error) {
	var account assignment.Account
	var name, industry, geography, segment sql.NullString
	dest := append(leading, &account.ID, &name, &account.ARR, &industry, &geography, &account.HealthScore, &segment)
	if err := rows.Scan(dest...); err != nil {
		return account, err
	}
	account.Name = name.String
	account.Industry = industry.String
	account.Geography = geography.String
	account.Segment = segment.String
	return account, nil
}

// queryError reports a failed query as a timeout when the job deadline caused it.
func queryError(ctx context.Context, queryType string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError("postgres", err)
	}
	return errors.NewQueryExecutionFailedError(queryType, err)
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
