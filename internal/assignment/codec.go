// internal/assignment/codec.go
package assignment

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action type")

type conditionWire struct {
	Field    Field       `json:"field"`
	Operator Operator    `json:"operator"`
	Value    Value       `json:"value"`
	Action   *actionWire `json:"action,omitempty"`
}

type actionWire struct {
	Type      ActionKind `json:"type"`
	TargetIDs *[]string  `json:"target_ids,omitempty"` // nil for actions without a pool
}

func (c Condition) MarshalJSON() ([]byte, error) {
	w := conditionWire{
		Field:    c.Field,
		Operator: c.Operator,
		Value:    c.Value,
	}
	if c.Action != nil {
		aw := &actionWire{Type: c.Action.Kind()}
		if pool, ok := c.Action.(AssignPool); ok {
			ids := pool.TargetIDs
			if ids == nil {
				ids = []string{}
			}
			aw.TargetIDs = &ids
		}
		w.Action = aw
	}
	return json.Marshal(w)
}

// UnmarshalJSON keeps unknown fields and operators verbatim so they fail closed at
// evaluation time. An unknown action type is a shape error.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	action, err := decodeAction(w.Action)
	if err != nil {
		return err
	}

	*c = Condition{
		Field:    w.Field,
		Operator: w.Operator,
		Value:    w.Value,
		Action:   action,
	}
	return nil
}

func decodeAction(w *actionWire) (Action, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Type {
	case ActionAssignPool:
		pool := AssignPool{TargetIDs: []string{}}
		if w.TargetIDs != nil {
			pool.TargetIDs = *w.TargetIDs
		}
		return pool, nil
	case ActionRoundRobin:
		return RoundRobin{}, nil
	case ActionLeastLoaded:
		return LeastLoaded{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, w.Type)
}

// DecodeRules parses a JSON rule list, as stored in the rules table or cache.
func DecodeRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rules, nil
}

// DecodeConditions parses the JSON conditions column of a single rule.
func DecodeConditions(data []byte) ([]Condition, error) {
	if len(data) == 0 {
		return []Condition{}, nil
	}
	var conditions []Condition
	if err := json.Unmarshal(data, &conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return conditions, nil
}
