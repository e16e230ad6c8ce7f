// internal/assignment/scorers.go
package assignment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is the revenue bucket of an ARR amount.
type Tier string

const (
	TierEnterprise Tier = "enterprise"
	TierMidMarket  Tier = "mid_market"
	TierSMB        Tier = "smb"
)

var (
	enterpriseFloor = decimal.NewFromInt(200000)
	midMarketFloor  = decimal.NewFromInt(50000)
)

// Neutral is returned when there is no data to judge a fit either way.
const Neutral = 50

// ClassifyARR maps an ARR amount to its tier.
func ClassifyARR(arr decimal.Decimal) Tier {
	if arr.GreaterThanOrEqual(enterpriseFloor) {
		return TierEnterprise
	} else if arr.GreaterThanOrEqual(midMarketFloor) {
		return TierMidMarket
	}
	return TierSMB
}

// CapacityScore bands the rep's utilization: at or over capacity 0, >=90% 20, >=70% 60,
// otherwise 100.
func CapacityScore(rep Rep, currentCount int) int {
	capacity := rep.Capacity
	if capacity < 1 {
		capacity = 1
	}
	utilization := float64(currentCount) / float64(capacity)

	if utilization >= 1.0 {
		return 0
	} else if utilization >= 0.9 {
		return 20
	} else if utilization >= 0.7 {
		return 60
	}
	return 100
}

// ARRMatchScore compares the account's tier with the tier of the rep's average
// portfolio ARR. A rep without accounts scores Neutral.
func ARRMatchScore(account Account, portfolio []Account) int {
	if len(portfolio) == 0 {
		return Neutral
	}

	total := decimal.Zero
	for _, a := range portfolio {
		total = total.Add(a.ARR)
	}
	average := total.Div(decimal.NewFromInt(int64(len(portfolio))))

	if ClassifyARR(average) == ClassifyARR(account.ARR) {
		return 100
	}
	return 40
}

// IndustryMatchScore: declared specialty 100, portfolio experience 70, otherwise 30.
func IndustryMatchScore(account Account, rep Rep, portfolio []Account) int {
	industry := account.Industry
	if isBlank(industry) {
		return Neutral
	}

	for _, s := range rep.Specialties {
		if strings.EqualFold(s, industry) {
			return 100
		}
	}
	for _, a := range portfolio {
		if strings.EqualFold(a.Industry, industry) {
			return 70
		}
	}
	return 30
}

// GeographyMatchScore: 100 when the rep already covers the geography, otherwise 30.
func GeographyMatchScore(account Account, portfolio []Account) int {
	geography := account.Geography
	if isBlank(geography) {
		return Neutral
	}

	for _, a := range portfolio {
		if strings.EqualFold(a.Geography, geography) {
			return 100
		}
	}
	return 30
}

// HealthRiskScore weights how much the assignment matters; it ignores the rep.
// Lower health means higher churn risk and a higher score.
func HealthRiskScore(account Account) int {
	health := account.HealthScore
	if health < 40 {
		return 100
	} else if health < 60 {
		return 70
	} else if health < 80 {
		return 40
	}
	return 20
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
