// internal/assignment/rules_test.go
package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func enterpriseAccount() Account {
	return Account{
		ID:          "acc-1",
		Name:        "Globex",
		ARR:         arr(250000),
		Industry:    "Fintech",
		Geography:   "APAC",
		HealthScore: 30,
	}
}

func poolRule(id string, cond Condition, targets ...string) Rule {
	cond.Action = AssignPool{TargetIDs: targets}
	return Rule{ID: id, Name: id, IsActive: true, Conditions: []Condition{cond}}
}

// ==========================
// Condition Evaluation
// ==========================

func TestMatchCondition(t *testing.T) {
	account := enterpriseAccount()

	tests := []struct {
		name     string
		cond     Condition
		expected bool
	}{
		{"equals segment derived from arr", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")}, true},
		{"equals is case sensitive", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("Enterprise")}, false},
		{"equals is strict across kinds", Condition{Field: FieldHealthScore, Operator: OpEquals, Value: StringValue("30")}, false},
		{"equals number", Condition{Field: FieldHealthScore, Operator: OpEquals, Value: NumberValue(30)}, true},
		{"not equals", Condition{Field: FieldGeography, Operator: OpNotEquals, Value: StringValue("EMEA")}, true},
		{"not equals same value", Condition{Field: FieldGeography, Operator: OpNotEquals, Value: StringValue("APAC")}, false},
		{"contains ignores case", Condition{Field: FieldIndustry, Operator: OpContains, Value: StringValue("TECH")}, true},
		{"contains miss", Condition{Field: FieldIndustry, Operator: OpContains, Value: StringValue("health")}, false},
		{"contains needs string value", Condition{Field: FieldIndustry, Operator: OpContains, Value: NumberValue(1)}, false},
		{"contains needs string field", Condition{Field: FieldARR, Operator: OpContains, Value: StringValue("250")}, false},
		{"greater than", Condition{Field: FieldARR, Operator: OpGreaterThan, Value: NumberValue(200000)}, true},
		{"greater than coerces numeric string", Condition{Field: FieldARR, Operator: OpGreaterThan, Value: StringValue("100000")}, true},
		{"greater than boundary", Condition{Field: FieldARR, Operator: OpGreaterThan, Value: NumberValue(250000)}, false},
		{"greater than non numeric is false", Condition{Field: FieldARR, Operator: OpGreaterThan, Value: StringValue("lots")}, false},
		{"greater than list is false", Condition{Field: FieldARR, Operator: OpGreaterThan, Value: ListValue(NumberValue(1))}, false},
		{"greater than on text field is false", Condition{Field: FieldIndustry, Operator: OpGreaterThan, Value: NumberValue(0)}, false},
		{"less than", Condition{Field: FieldHealthScore, Operator: OpLessThan, Value: NumberValue(40)}, true},
		{"less than with bool coerces", Condition{Field: FieldHealthScore, Operator: OpLessThan, Value: BoolValue(true)}, false},
		{"in list", Condition{Field: FieldGeography, Operator: OpIn, Value: StringList("EMEA", "APAC")}, true},
		{"in list miss", Condition{Field: FieldGeography, Operator: OpIn, Value: StringList("EMEA", "NA")}, false},
		{"in requires list", Condition{Field: FieldGeography, Operator: OpIn, Value: StringValue("APAC")}, false},
		{"in is strict", Condition{Field: FieldHealthScore, Operator: OpIn, Value: StringList("30")}, false},
		{"unknown operator", Condition{Field: FieldSegment, Operator: Operator("matches"), Value: StringValue("enterprise")}, false},
		{"unknown field", Condition{Field: Field("owner"), Operator: OpNotEquals, Value: StringValue("x")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchCondition(account, tt.cond))
		})
	}
}

func TestMatchCondition_UnsetOptionalFields(t *testing.T) {
	account := Account{ID: "acc-2", ARR: arr(1000), HealthScore: 90}

	assert.False(t, MatchCondition(account, Condition{Field: FieldIndustry, Operator: OpEquals, Value: StringValue("")}))
	assert.True(t, MatchCondition(account, Condition{Field: FieldIndustry, Operator: OpNotEquals, Value: StringValue("retail")}))
	assert.False(t, MatchCondition(account, Condition{Field: FieldGeography, Operator: OpContains, Value: StringValue("")}))
	assert.False(t, MatchCondition(account, Condition{Field: FieldGeography, Operator: OpLessThan, Value: NumberValue(1)}))
}

func TestBlankOptionalFieldsReadAsAbsent(t *testing.T) {
	account := Account{ID: "acc-3", ARR: arr(1000), Industry: "   ", Geography: "\t", HealthScore: 90}
	portfolio := []Account{{ID: "acc-4", Industry: "   ", Geography: "\t"}}

	for _, field := range []Field{FieldIndustry, FieldGeography} {
		value, ok := FieldValue(account, field)
		assert.True(t, ok)
		assert.Equal(t, KindNull, value.Kind(), string(field))
	}

	assert.False(t, MatchCondition(account, Condition{Field: FieldIndustry, Operator: OpEquals, Value: StringValue("   ")}))
	assert.False(t, MatchCondition(account, Condition{Field: FieldGeography, Operator: OpContains, Value: StringValue("")}))
	assert.True(t, MatchCondition(account, Condition{Field: FieldIndustry, Operator: OpNotEquals, Value: StringValue("retail")}))

	assert.Equal(t, Neutral, IndustryMatchScore(account, Rep{ID: "rep-1", Specialties: []string{"   "}}, portfolio))
	assert.Equal(t, Neutral, GeographyMatchScore(account, portfolio))
}

func TestFieldValue_SegmentOverride(t *testing.T) {
	account := Account{ARR: arr(1000), Segment: "strategic"}
	v, ok := FieldValue(account, FieldSegment)
	assert.True(t, ok)
	assert.Equal(t, StringValue("strategic"), v)

	account.Segment = ""
	v, ok = FieldValue(account, FieldSegment)
	assert.True(t, ok)
	assert.Equal(t, StringValue("smb"), v)
}

// ==========================
// Rule Walk
// ==========================

func TestEvaluateRules_NoRules(t *testing.T) {
	eval := EvaluateRules(enterpriseAccount(), "rep-1", nil)
	assert.True(t, eval.Eligible)
	assert.Zero(t, eval.Bonus)
	assert.Empty(t, eval.MatchedRules)
}

func TestEvaluateRules_AssignPool(t *testing.T) {
	rules := []Rule{
		poolRule("enterprise-pool", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")}, "rep-9"),
	}

	inPool := EvaluateRules(enterpriseAccount(), "rep-9", rules)
	assert.True(t, inPool.Eligible)
	assert.Equal(t, 20.0, inPool.Bonus)
	assert.Equal(t, []string{"enterprise-pool"}, inPool.MatchedRules)

	outOfPool := EvaluateRules(enterpriseAccount(), "rep-1", rules)
	assert.False(t, outOfPool.Eligible)
	assert.Equal(t, "enterprise-pool", outOfPool.ExcludedBy)
	assert.Zero(t, outOfPool.Bonus)
}

func TestEvaluateRules_NonMatchingConditionHasNoEffect(t *testing.T) {
	rules := []Rule{
		poolRule("smb-pool", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("smb")}, "rep-9"),
	}

	eval := EvaluateRules(enterpriseAccount(), "rep-1", rules)
	assert.True(t, eval.Eligible)
	assert.Zero(t, eval.Bonus)
}

func TestEvaluateRules_InactiveRulesSkipped(t *testing.T) {
	rule := poolRule("disabled", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")}, "rep-9")
	rule.IsActive = false

	eval := EvaluateRules(enterpriseAccount(), "rep-1", []Rule{rule})
	assert.True(t, eval.Eligible)
	assert.Zero(t, eval.Bonus)
}

func TestEvaluateRules_BonusesAccumulate(t *testing.T) {
	rules := []Rule{
		poolRule("apac", Condition{Field: FieldGeography, Operator: OpEquals, Value: StringValue("APAC")}, "rep-9", "rep-3"),
		poolRule("at-risk", Condition{Field: FieldHealthScore, Operator: OpLessThan, Value: NumberValue(50)}, "rep-9"),
		{
			ID:       "two-conditions",
			IsActive: true,
			Conditions: []Condition{
				{Field: FieldIndustry, Operator: OpContains, Value: StringValue("fin"), Action: AssignPool{TargetIDs: []string{"rep-9"}}},
				{Field: FieldARR, Operator: OpGreaterThan, Value: NumberValue(1), Action: AssignPool{TargetIDs: []string{"rep-9"}}},
			},
		},
	}

	eval := EvaluateRules(enterpriseAccount(), "rep-9", rules)
	assert.True(t, eval.Eligible)
	assert.Equal(t, 80.0, eval.Bonus)
	assert.Equal(t, []string{"apac", "at-risk", "two-conditions"}, eval.MatchedRules)
}

func TestEvaluateRules_EligibilityCannotBeRestored(t *testing.T) {
	rules := []Rule{
		poolRule("first", Condition{Field: FieldGeography, Operator: OpEquals, Value: StringValue("APAC")}, "rep-9"),
		poolRule("second", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")}, "rep-3"),
	}

	eval := EvaluateRules(enterpriseAccount(), "rep-3", rules)
	assert.False(t, eval.Eligible)
	assert.Equal(t, "first", eval.ExcludedBy)
}

func TestEvaluateRules_BonusThenExclusion(t *testing.T) {
	rules := []Rule{
		poolRule("grant", Condition{Field: FieldGeography, Operator: OpEquals, Value: StringValue("APAC")}, "rep-3"),
		poolRule("revoke", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")}, "rep-9"),
	}

	eval := EvaluateRules(enterpriseAccount(), "rep-3", rules)
	assert.False(t, eval.Eligible)
	assert.Equal(t, "revoke", eval.ExcludedBy)
}

func TestEvaluateRules_PassThroughActions(t *testing.T) {
	rules := []Rule{
		{
			ID:       "rr",
			IsActive: true,
			Conditions: []Condition{
				{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise"), Action: RoundRobin{}},
				{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise"), Action: LeastLoaded{}},
				{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")},
			},
		},
	}

	eval := EvaluateRules(enterpriseAccount(), "rep-1", rules)
	assert.True(t, eval.Eligible)
	assert.Zero(t, eval.Bonus)
	assert.Empty(t, eval.MatchedRules)
}

func TestEvaluateRules_MalformedConditionDoesNotExclude(t *testing.T) {
	rules := []Rule{
		poolRule("bad-number", Condition{Field: FieldARR, Operator: OpGreaterThan, Value: StringValue("n/a")}, "rep-9"),
		poolRule("bad-in", Condition{Field: FieldGeography, Operator: OpIn, Value: StringValue("APAC")}, "rep-9"),
		poolRule("bad-op", Condition{Field: FieldGeography, Operator: Operator("regex"), Value: StringValue(".*")}, "rep-9"),
	}

	assert.NotPanics(t, func() {
		eval := EvaluateRules(enterpriseAccount(), "rep-1", rules)
		assert.True(t, eval.Eligible)
		assert.Zero(t, eval.Bonus)
	})
}

func TestAssignPool_EmptyTargetsExcludesEveryone(t *testing.T) {
	rules := []Rule{
		poolRule("freeze", Condition{Field: FieldSegment, Operator: OpEquals, Value: StringValue("enterprise")}),
	}
	assert.False(t, EvaluateRules(enterpriseAccount(), "rep-1", rules).Eligible)
	assert.False(t, EvaluateRules(enterpriseAccount(), "rep-9", rules).Eligible)
}
