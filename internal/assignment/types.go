// internal/assignment/types.go
package assignment

import (
	"github.com/shopspring/decimal"
)

// Account is a customer account that needs (or already has) an owner.
type Account struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ARR         decimal.Decimal `json:"arr"`
	Industry    string          `json:"industry,omitempty"`
	Geography   string          `json:"geography,omitempty"`
	HealthScore int             `json:"health_score"`
	Segment     string          `json:"segment,omitempty"`
}

// Rep is a candidate assignee. Workload snapshots are passed separately on the Request.
type Rep struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Capacity    int      `json:"capacity"`
	Specialties []string `json:"specialties"`
}

// Rule is an ordered, toggleable policy unit. Evaluation order is slice order;
// Priority is carried for display only.
type Rule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	IsActive   bool        `json:"is_active"`
	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions"`
}

// Field selects the account attribute a condition reads.
type Field string

const (
	FieldSegment     Field = "segment"
	FieldIndustry    Field = "industry"
	FieldGeography   Field = "geography"
	FieldARR         Field = "arr"
	FieldHealthScore Field = "health_score"
)

// Operator is a condition comparison. Unknown operators are kept verbatim and never match.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
)

// Known reports whether op is one of the supported operators.
func (op Operator) Known() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan, OpIn:
		return true
	}
	return false
}

// Condition is a single predicate over an account field with an optional action.
type Condition struct {
	Field    Field
	Operator Operator
	Value    Value
	Action   Action // nil when the condition carries no action
}

// ActionKind names an Action variant on the wire.
type ActionKind string

const (
	ActionAssignPool  ActionKind = "assign_pool"
	ActionRoundRobin  ActionKind = "round_robin"
	ActionLeastLoaded ActionKind = "least_loaded"
)

// Action is the closed set of condition actions: AssignPool, RoundRobin, LeastLoaded.
type Action interface {
	Kind() ActionKind
	isAction()
}

// AssignPool restricts eligibility to TargetIDs and grants members a flat bonus.
type AssignPool struct {
	TargetIDs []string
}

// RoundRobin is a signal for the downstream commit step; it does not affect scoring.
type RoundRobin struct{}

// LeastLoaded is a signal for the downstream commit step; it does not affect scoring.
type LeastLoaded struct{}

func (AssignPool) Kind() ActionKind { return ActionAssignPool }
func (RoundRobin) Kind() ActionKind { return ActionRoundRobin }
func (LeastLoaded) Kind() ActionKind { return ActionLeastLoaded }

func (AssignPool) isAction() {}
func (RoundRobin) isAction() {}
func (LeastLoaded) isAction() {}

// Contains reports whether repID is in the pool.
func (a AssignPool) Contains(repID string) bool {
	for _, id := range a.TargetIDs {
		if id == repID {
			return true
		}
	}
	return false
}

// Weights are the factor multipliers applied before the rule bonus.
type Weights struct {
	Capacity       float64 `json:"capacity" mapstructure:"capacity"`
	ARRMatch       float64 `json:"arr_match" mapstructure:"arr_match"`
	IndustryMatch  float64 `json:"industry_match" mapstructure:"industry_match"`
	GeographyMatch float64 `json:"geography_match" mapstructure:"geography_match"`
	HealthScore    float64 `json:"health_score" mapstructure:"health_score"`
}

// DefaultWeights returns capacity 0.30, arr 0.25, industry 0.20, geography 0.15, health 0.10.
func DefaultWeights() Weights {
	return Weights{
		Capacity:       0.30,
		ARRMatch:       0.25,
		IndustryMatch:  0.20,
		GeographyMatch: 0.15,
		HealthScore:    0.10,
	}
}

// WeightOverrides replaces individual weights; nil fields keep the base value.
type WeightOverrides struct {
	Capacity       *float64 `json:"capacity,omitempty"`
	ARRMatch       *float64 `json:"arr_match,omitempty"`
	IndustryMatch  *float64 `json:"industry_match,omitempty"`
	GeographyMatch *float64 `json:"geography_match,omitempty"`
	HealthScore    *float64 `json:"health_score,omitempty"`
}

// Apply returns w with every non-nil override applied.
func (w Weights) Apply(o *WeightOverrides) Weights {
	if o == nil {
		return w
	}
	if o.Capacity != nil {
		w.Capacity = *o.Capacity
	}
	if o.ARRMatch != nil {
		w.ARRMatch = *o.ARRMatch
	}
	if o.IndustryMatch != nil {
		w.IndustryMatch = *o.IndustryMatch
	}
	if o.GeographyMatch != nil {
		w.GeographyMatch = *o.GeographyMatch
	}
	if o.HealthScore != nil {
		w.HealthScore = *o.HealthScore
	}
	return w
}

// Request is the complete, caller-materialized input of one engine run.
// RepAccountCounts and RepCurrentAccounts are snapshots keyed by rep ID.
type Request struct {
	Accounts           []Account            `json:"accounts"`
	Reps               []Rep                `json:"reps"`
	RepAccountCounts   map[string]int       `json:"rep_account_counts"`
	RepCurrentAccounts map[string][]Account `json:"rep_current_accounts"`
	Rules              []Rule               `json:"rules"`
	Weights            *WeightOverrides     `json:"weights,omitempty"`
}

// ScoreBreakdown keeps the five clamped factor scores for explainability.
type ScoreBreakdown struct {
	Capacity       int `json:"capacity"`
	ARRMatch       int `json:"arr_match"`
	IndustryMatch  int `json:"industry_match"`
	GeographyMatch int `json:"geography_match"`
	HealthScore    int `json:"health_score"`
}

// RepRecommendation is one ranked candidate. Score may exceed 100 when rule bonuses apply.
type RepRecommendation struct {
	RepID        string         `json:"rep_id"`
	RepName      string         `json:"rep_name"`
	Score        int            `json:"score"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	RuleBonus    float64        `json:"rule_bonus"`
	MatchedRules []string       `json:"matched_rules,omitempty"`
}

// Recommendation is the ranked candidate list for one account.
type Recommendation struct {
	AccountID       string              `json:"account_id"`
	AccountName     string              `json:"account_name"`
	Recommendations []RepRecommendation `json:"recommendations"`
}
