// internal/assignment/value.go
package assignment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	}
	return "null"
}

// Value is a typed literal: a condition's comparison value or an account field value.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
}

func NullValue() Value { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// StringList builds a list of string values.
func StringList(items ...string) Value {
	out := make([]Value, 0, len(items))
	for _, s := range items {
		out = append(out, StringValue(s))
	}
	return ListValue(out...)
}

func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// List returns the list payload and whether v is a list.
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

// StrictEquals compares kind and payload. NaN never equals anything; lists and objects
// compare by identity, so two of them are never equal.
func (v Value) StrictEquals(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	}
	return false
}

// Number coerces v to a float. The second result is false when coercion yields NaN:
// null, lists, objects, and strings that are not numeric literals.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, !math.IsNaN(v.num)
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		return parseNumeric(v.str)
	}
	return math.NaN(), false
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN(), false
	}
	return f, true
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindObject:
		return "{}"
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.String())
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "null"
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

func (v Value) native() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]interface{}, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.native())
		}
		return out
	case KindObject:
		return map[string]interface{}{}
	}
	return nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueFromNative(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromNative(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(t), nil
	case float64:
		return NumberValue(t), nil
	case bool:
		return BoolValue(t), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			parsed, err := valueFromNative(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, parsed)
		}
		return ListValue(items...), nil
	case map[string]interface{}:
		return Value{kind: KindObject}, nil
	}
	return Value{}, fmt.Errorf("unsupported condition value of type %T", raw)
}
