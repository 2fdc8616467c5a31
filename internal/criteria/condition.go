package criteria

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConditionKind is the abstract comparison requested for a filter.
type ConditionKind string

const (
	Equal          ConditionKind = "equal"
	NotEqual       ConditionKind = "not_equal"
	Contains       ConditionKind = "contains"
	NotContains    ConditionKind = "not_contains"
	StartsWith     ConditionKind = "starts_with"
	EndsWith       ConditionKind = "ends_with"
	GreaterThan    ConditionKind = "greater_than"
	GreaterOrEqual ConditionKind = "greater_or_equal"
	LessThan       ConditionKind = "less_than"
	LessOrEqual    ConditionKind = "less_or_equal"
	IsEmpty        ConditionKind = "is_empty"
	IsNotEmpty     ConditionKind = "is_not_empty"
	Between        ConditionKind = "between"
	In             ConditionKind = "in"
)

// conditionAliases maps every accepted wire spelling to its kind.
var conditionAliases = map[string]ConditionKind{
	"equal":              Equal,
	"not_equal":          NotEqual,
	"contains":           Contains,
	"contain":            Contains,
	"not_contains":       NotContains,
	"not_contain":        NotContains,
	"starts_with":        StartsWith,
	"start_with":         StartsWith,
	"ends_with":          EndsWith,
	"end_with":           EndsWith,
	"greater_than":       GreaterThan,
	"greater_or_equal":   GreaterOrEqual,
	"greater_than_equal": GreaterOrEqual,
	"less_than":          LessThan,
	"less_or_equal":      LessOrEqual,
	"less_than_equal":    LessOrEqual,
	"is_empty":           IsEmpty,
	"is_not_empty":       IsNotEmpty,
	"between":            Between,
	"in":                 In,
}

// ParseCondition normalizes a condition keyword.
func ParseCondition(s string) (ConditionKind, error) {
	if k, ok := conditionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCondition, s)
}

// OperatorFor returns the SQL operator for conditions compiled as a plain
// comparison. is_empty, is_not_empty, between and in are structural and
// report false.
func OperatorFor(c ConditionKind) (string, bool) {
	switch c {
	case Equal:
		return "=", true
	case NotEqual:
		return "!=", true
	case Contains, StartsWith, EndsWith:
		return "LIKE", true
	case NotContains:
		return "NOT LIKE", true
	case GreaterThan:
		return ">", true
	case GreaterOrEqual:
		return ">=", true
	case LessThan:
		return "<", true
	case LessOrEqual:
		return "<=", true
	}
	return "", false
}

// Coerce shapes and converts a raw value for the condition and the declared
// cast of the terminal column.
//
//   - in: a string scalar is split on ",", a list passes through untouched.
//   - between: the value is reshaped into a pair and both bounds are cast.
//   - is_empty / is_not_empty: the value is ignored.
//   - everything else: a scalar is cast, then wrapped for pattern conditions.
func Coerce(v Value, c ConditionKind, cast string) (Value, error) {
	switch c {
	case IsEmpty, IsNotEmpty:
		return AbsentValue(), nil
	case In:
		switch v.Kind() {
		case KindList:
			return v, nil
		case KindPair:
			return ListValue(v.Items()...), nil
		case KindScalar:
			if s, ok := v.Scalar().(string); ok {
				return ListValue(splitList(s)...), nil
			}
			return ListValue(v.Scalar()), nil
		}
		return Value{}, fmt.Errorf("%w: in expects a list", ErrInvalidValue)
	case Between:
		pair, err := asPair(v)
		if err != nil {
			return Value{}, err
		}
		lo, err := castValue(pair.items[0], cast)
		if err != nil {
			return Value{}, err
		}
		hi, err := castValue(pair.items[1], cast)
		if err != nil {
			return Value{}, err
		}
		return PairValue(lo, hi), nil
	}

	if v.Kind() != KindScalar {
		return Value{}, fmt.Errorf("%w: %s expects a single value", ErrInvalidValue, c)
	}
	out, err := castValue(v.Scalar(), cast)
	if err != nil {
		return Value{}, err
	}
	switch c {
	case Contains, NotContains:
		return ScalarValue("%" + stringify(out) + "%"), nil
	case StartsWith:
		return ScalarValue(stringify(out) + "%"), nil
	case EndsWith:
		return ScalarValue("%" + stringify(out)), nil
	}
	return ScalarValue(out), nil
}

func asPair(v Value) (Value, error) {
	switch v.Kind() {
	case KindPair:
		return v, nil
	case KindList:
		if len(v.items) == 2 {
			return PairValue(v.items[0], v.items[1]), nil
		}
	case KindScalar:
		if s, ok := v.Scalar().(string); ok {
			if parts := strings.Split(s, ","); len(parts) == 2 {
				return PairValue(parts[0], parts[1]), nil
			}
		}
	}
	return Value{}, ErrMalformedRange
}

func splitList(s string) []any {
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// castValue applies a declared column cast. Unknown or empty casts pass the
// value through.
func castValue(v any, cast string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(cast)) {
	case "bool", "boolean":
		return castBool(v)
	case "int", "integer":
		return castInt(v)
	case "float", "double", "real", "decimal":
		return castFloat(v)
	case "string":
		return stringify(v), nil
	}
	return v, nil
}

func castBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "true", "on", "1":
			return true, nil
		case "false", "off", "0":
			return false, nil
		}
	case int:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case int64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, v)
}

func castInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		// Truncates toward zero; values outside int64 have no defined conversion.
		if math.IsNaN(x) || x < -(1<<63) || x >= 1<<63 {
			break
		}
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
}

func castFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not a number", ErrInvalidValue, v)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
