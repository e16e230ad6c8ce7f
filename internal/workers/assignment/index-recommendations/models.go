// internal/workers/assignment/index-recommendations/models.go
package indexrecommendations

import (
	"time"

	"handoff-workers/internal/assignment"
)

type Input struct {
	OrganizationID  string                      `json:"organizationId"`
	RunID           string                      `json:"runId"`
	GeneratedAt     *time.Time                  `json:"generatedAt,omitempty"`
	Recommendations []assignment.Recommendation `json:"recommendations"`
}

type Output struct {
	Indexed  int               `json:"indexed"`
	Failed   int               `json:"failed"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Document is one ranked candidate, or a rank-0 placeholder for an account without one.
type Document struct {
	RunID          string                     `json:"run_id"`
	OrganizationID string                     `json:"organization_id"`
	AccountID      string                     `json:"account_id"`
	AccountName    string                     `json:"account_name"`
	Rank           int                        `json:"rank"`
	HasCandidate   bool                       `json:"has_candidate"`
	RepID          string                     `json:"rep_id,omitempty"`
	RepName        string                     `json:"rep_name,omitempty"`
	Score          int                        `json:"score"`
	Breakdown      *assignment.ScoreBreakdown `json:"breakdown,omitempty"`
	RuleBonus      float64                    `json:"rule_bonus,omitempty"`
	MatchedRules   []string                   `json:"matched_rules,omitempty"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}
