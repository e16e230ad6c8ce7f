// internal/assignment/rules.go
package assignment

import (
	"strings"
)

// PoolBonus is added to a rep's final score each time an assign_pool action naming the
// rep fires.
const PoolBonus = 20.0

// Evaluation is the rule outcome for one (account, rep) pair.
type Evaluation struct {
	Eligible     bool
	Bonus        float64
	MatchedRules []string // rules whose assign_pool action granted a bonus
	ExcludedBy   string   // rule that revoked eligibility, if any
}

// EvaluateRules walks the active rules in slice order. Once a rule revokes eligibility
// the walk stops: nothing later can restore it.
func EvaluateRules(account Account, repID string, rules []Rule) Evaluation {
	eval := Evaluation{Eligible: true}

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		for _, cond := range rule.Conditions {
			if !MatchCondition(account, cond) {
				continue
			}
			switch action := cond.Action.(type) {
			case AssignPool:
				if !action.Contains(repID) {
					eval.Eligible = false
					eval.ExcludedBy = rule.ID
					eval.Bonus = 0
					eval.MatchedRules = nil
					return eval
				}
				eval.Bonus += PoolBonus
				eval.MatchedRules = appendUnique(eval.MatchedRules, rule.ID)
			case RoundRobin, LeastLoaded, nil:
				// handled by the commit step, not scored here
			}
		}
	}

	return eval
}

// MatchCondition evaluates a single predicate against the account. Anything malformed
// (unknown field or operator, wrong operand kinds, NaN) is a non-match.
func MatchCondition(account Account, cond Condition) bool {
	if !cond.Operator.Known() {
		return false
	}
	fieldValue, ok := FieldValue(account, cond.Field)
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return fieldValue.StrictEquals(cond.Value)
	case OpNotEquals:
		return !fieldValue.StrictEquals(cond.Value)
	case OpContains:
		haystack, ok := fieldValue.Str()
		if !ok {
			return false
		}
		needle, ok := cond.Value.Str()
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	case OpGreaterThan, OpLessThan:
		left, ok := fieldValue.Number()
		if !ok {
			return false
		}
		right, ok := cond.Value.Number()
		if !ok {
			return false
		}
		if cond.Operator == OpGreaterThan {
			return left > right
		}
		return left < right
	case OpIn:
		items, ok := cond.Value.List()
		if !ok {
			return false
		}
		for _, item := range items {
			if fieldValue.StrictEquals(item) {
				return true
			}
		}
		return false
	}
	return false
}

// FieldValue reads the selected account attribute. Optional strings that are blank read
// as null, the same way the scorers treat them as unknown. The segment falls back to the ARR tier when the account has none.
func FieldValue(account Account, field Field) (Value, bool) {
	switch field {
	case FieldSegment:
		if account.Segment != "" {
			return StringValue(account.Segment), true
		}
		return StringValue(string(ClassifyARR(account.ARR))), true
	case FieldIndustry:
		return optionalString(account.Industry), true
	case FieldGeography:
		return optionalString(account.Geography), true
	case FieldARR:
		return NumberValue(account.ARR.InexactFloat64()), true
	case FieldHealthScore:
		return NumberValue(float64(account.HealthScore)), true
	}
	return Value{}, false
}

func optionalString(s string) Value {
	if isBlank(s) {
		return NullValue()
	}
	return StringValue(s)
}

// isBlank reports whether an optional account string is absent.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
