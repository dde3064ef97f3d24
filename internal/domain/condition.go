package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operator is a condition comparison operator.
type Operator string

// Supported operators. Anything else evaluates to false.
const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpContains Operator = "contains"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
)

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpContains, OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

// ConditionSpec is a single declarative predicate over a DomainEvent.
//
// Field is a dot path; a leading "payload" segment is an alias for the
// event itself, so "payload.title" and "title" resolve identically.
type ConditionSpec struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Scalar   `json:"value"`
}

// ParseCondition decodes a stored condition_json document.
func ParseCondition(raw string) (ConditionSpec, error) {
	var c ConditionSpec
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ConditionSpec{}, fmt.Errorf("invalid condition_json: %w", err)
	}
	if c.Field == "" {
		return ConditionSpec{}, fmt.Errorf("invalid condition_json: field is required")
	}
	return c, nil
}

// ScalarKind tags the JSON type a Scalar was decoded from.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is a condition value: a JSON string, number, boolean or null.
// Text always holds the stringified form used by string operators.
type Scalar struct {
	Kind ScalarKind
	Text string
}

// StringScalar wraps a string value.
func StringScalar(s string) Scalar {
	return Scalar{Kind: ScalarString, Text: s}
}

// NumberScalar wraps a numeric value.
func NumberScalar(f float64) Scalar {
	return Scalar{Kind: ScalarNumber, Text: formatNumber(f)}
}

// String returns the stringified value.
func (s Scalar) String() string {
	if s.Kind == ScalarNull {
		return "null"
	}
	return s.Text
}

// Number coerces the value to a float. Non-numeric text yields NaN.
func (s Scalar) Number() float64 {
	switch s.Kind {
	case ScalarNull:
		return 0
	case ScalarBool:
		if s.Text == "true" {
			return 1
		}
		return 0
	default:
		return ParseNumber(s.Text)
	}
}

// UnmarshalJSON accepts any JSON scalar and rejects objects and arrays.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*s = Scalar{Kind: ScalarNull}
	case string:
		*s = StringScalar(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("value %q: %w", val.String(), err)
		}
		*s = NumberScalar(f)
	case bool:
		*s = Scalar{Kind: ScalarBool, Text: strconv.FormatBool(val)}
	default:
		return fmt.Errorf("value must be a string, number, boolean or null")
	}
	return nil
}

// MarshalJSON writes the value back in its original JSON type.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScalarNull:
		return []byte("null"), nil
	case ScalarNumber, ScalarBool:
		return []byte(s.Text), nil
	default:
		return json.Marshal(s.Text)
	}
}

// ParseNumber converts text to a float the way a loosely typed comparison
// would: surrounding space is ignored, blank text is zero, and anything
// unparsable is NaN.
func ParseNumber(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	if math.IsInf(f, 0) {
		switch strings.TrimPrefix(strings.TrimPrefix(t, "+"), "-") {
		case "Infinity":
			return f
		}
		return math.NaN()
	}
	if math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

// formatNumber renders f as ECMAScript's Number toString does: plain
// decimal digits for magnitudes in [1e-6, 1e21), shortest exponent form
// ("1e+21", "1.5e-7") outside it.
func formatNumber(f float64) string {
	switch {
	case f == 0:
		return "0"
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}
