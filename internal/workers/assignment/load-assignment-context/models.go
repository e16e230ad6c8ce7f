// internal/workers/assignment/load-assignment-context/models.go
package loadassignmentcontext

import "handoff-workers/internal/assignment"

type Input struct {
	OrganizationID string   `json:"organizationId"`
	AccountIDs     []string `json:"accountIds"`
	RepIDs         []string `json:"repIds,omitempty"`
}

// Output is the recommendation request for the next task, plus where the rules came from.
type Output struct {
	assignment.Request
	RuleSetSource string `json:"ruleSetSource"`
}

const (
	RuleSetSourceCache    = "cache"
	RuleSetSourceDatabase = "database"
)
