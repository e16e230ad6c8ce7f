// internal/assignment/engine.go
package assignment

import (
	"math"
	"sort"

	"github.com/sourcegraph/conc/iter"
)

// DefaultTopN is the maximum number of reps recommended per account.
const DefaultTopN = 3

// Engine ranks candidate reps per account. It holds configuration only; every call is
// independent and reads its inputs without mutating them.
type Engine struct {
	weights     Weights
	topN        int
	parallelism int
}

type Option func(*Engine)

// WithWeights sets the base weights that per-request overrides apply on top of.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithTopN caps the recommendation list. Values outside 1..DefaultTopN are ignored.
func WithTopN(n int) Option {
	return func(e *Engine) {
		if n >= 1 && n <= DefaultTopN {
			e.topN = n
		}
	}
}

// WithParallelism scores up to n accounts concurrently. Output order is unaffected.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 1 {
			e.parallelism = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights:     DefaultWeights(),
		topN:        DefaultTopN,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the engine's base weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Summary counts what happened during a run.
type Summary struct {
	Accounts                  int `json:"accounts"`
	AccountsWithoutCandidates int `json:"accountsWithoutCandidates"`
	ScoredPairs               int `json:"scoredPairs"`
	ExcludedPairs             int `json:"excludedPairs"`
}

type accountResult struct {
	recommendation Recommendation
	scored         int
	excluded       int
}

// Recommend returns one Recommendation per account, in input order.
func (e *Engine) Recommend(req *Request) []Recommendation {
	recs, _ := e.RecommendWithSummary(req)
	return recs
}

// RecommendWithSummary is Recommend plus run counters.
func (e *Engine) RecommendWithSummary(req *Request) ([]Recommendation, Summary) {
	if req == nil {
		return []Recommendation{}, Summary{}
	}
	weights := e.weights.Apply(req.Weights)

	score := func(account *Account) accountResult {
		return e.recommendAccount(account, req, weights)
	}

	var results []accountResult
	if e.parallelism > 1 && len(req.Accounts) > 1 {
		mapper := iter.Mapper[Account, accountResult]{MaxGoroutines: e.parallelism}
		results = mapper.Map(req.Accounts, score)
	} else {
		results = make([]accountResult, 0, len(req.Accounts))
		for i := range req.Accounts {
			results = append(results, score(&req.Accounts[i]))
		}
	}

	recs := make([]Recommendation, 0, len(results))
	summary := Summary{Accounts: len(results)}
	for _, r := range results {
		recs = append(recs, r.recommendation)
		summary.ScoredPairs += r.scored
		summary.ExcludedPairs += r.excluded
		if len(r.recommendation.Recommendations) == 0 {
			summary.AccountsWithoutCandidates++
		}
	}
	return recs, summary
}

func (e *Engine) recommendAccount(account *Account, req *Request, weights Weights) accountResult {
	result := accountResult{
		recommendation: Recommendation{
			AccountID:       account.ID,
			AccountName:     account.Name,
			Recommendations: []RepRecommendation{},
		},
	}

	candidates := make([]RepRecommendation, 0, len(req.Reps))
	for _, rep := range req.Reps {
		eval := EvaluateRules(*account, rep.ID, req.Rules)
		if !eval.Eligible {
			result.excluded++
			continue
		}

		portfolio := req.RepCurrentAccounts[rep.ID]
		breakdown := ScoreBreakdown{
			Capacity:       clampScore(CapacityScore(rep, req.RepAccountCounts[rep.ID])),
			ARRMatch:       clampScore(ARRMatchScore(*account, portfolio)),
			IndustryMatch:  clampScore(IndustryMatchScore(*account, rep, portfolio)),
			GeographyMatch: clampScore(GeographyMatchScore(*account, portfolio)),
			HealthScore:    clampScore(HealthRiskScore(*account)),
		}

		candidates = append(candidates, RepRecommendation{
			RepID:        rep.ID,
			RepName:      rep.Name,
			Score:        FinalScore(breakdown, weights, eval.Bonus),
			Breakdown:    breakdown,
			RuleBonus:    eval.Bonus,
			MatchedRules: eval.MatchedRules,
		})
		result.scored++
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > e.topN {
		candidates = candidates[:e.topN]
	}

	result.recommendation.Recommendations = append(result.recommendation.Recommendations, candidates...)
	return result
}

// FinalScore is the weighted factor sum plus bonus, rounded half up. It is not clamped:
// a rule bonus can push it past 100.
func FinalScore(b ScoreBreakdown, w Weights, bonus float64) int {
	total := float64(b.Capacity)*w.Capacity +
		float64(b.ARRMatch)*w.ARRMatch +
		float64(b.IndustryMatch)*w.IndustryMatch +
		float64(b.GeographyMatch)*w.GeographyMatch +
		float64(b.HealthScore)*w.HealthScore +
		bonus
	return int(math.Floor(total + 0.5))
}

// Recommend runs a default-configured engine.
func Recommend(req *Request) []Recommendation {
	return NewEngine().Recommend(req)
}
