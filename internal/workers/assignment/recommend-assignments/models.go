// internal/workers/assignment/recommend-assignments/models.go
package recommendassignments

import (
	"time"

	"handoff-workers/internal/assignment"
)

// Output becomes the process variables read by index-recommendations.
type Output struct {
	RunID           string                      `json:"runId"`
	GeneratedAt     time.Time                   `json:"generatedAt"`
	Recommendations []assignment.Recommendation `json:"recommendations"`
	Summary         assignment.Summary          `json:"summary"`
}
