package rbac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Operator is a comparator applied by a declarative condition.
type Operator string

// Supported condition operators.
const (
	OpEq       Operator = "eq"
	OpIn       Operator = "in"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpExists   Operator = "exists"
)

// Condition is a declarative predicate attached to a protected operation.
// Field names resolve against the request: the special names userId,
// tenantId, method and ip read the context; "body.", "query." and
// "params." prefixes read the corresponding section; bare names probe
// body, then query, then params.
type Condition struct {
	Field    string   `validate:"required"`
	Operator Operator `validate:"required,oneof=eq in gt lt gte lte contains exists"`
	Value    any
	Message  string
}

var conditionValidator = validator.New()

// Validate rejects malformed conditions at registration time, before any
// request can hit them.
func (c Condition) Validate() error {
	if err := conditionValidator.Struct(c); err != nil {
		return fmt.Errorf("rbac: condition invalide: %w", err)
	}
	return nil
}

// EvaluateConditions applies conditions in declared order and returns a
// *ConditionError for the first one that fails. Later conditions are not
// evaluated once one fails.
func EvaluateConditions(conditions []Condition, req *Request) error {
	for _, cond := range conditions {
		value, defined := resolveField(cond.Field, req)
		if !met(cond, value, defined) {
			return &ConditionError{Condition: cond}
		}
	}
	return nil
}

func resolveField(field string, req *Request) (any, bool) {
	switch field {
	case "userId":
		return req.Context.UserID, true
	case "tenantId":
		return req.Context.TenantID, true
	case "method":
		return req.Method, true
	case "ip":
		return req.Context.SourceIP, true
	}
	if name, ok := strings.CutPrefix(field, "body."); ok {
		return lookup(req.Body, name)
	}
	if name, ok := strings.CutPrefix(field, "query."); ok {
		return lookup(req.Query, name)
	}
	if name, ok := strings.CutPrefix(field, "params."); ok {
		return lookup(req.Params, name)
	}
	for _, section := range []map[string]any{req.Body, req.Query, req.Params} {
		if v, ok := lookup(section, field); ok {
			return v, true
		}
	}
	return nil, false
}

func lookup(section map[string]any, name string) (any, bool) {
	if section == nil {
		return nil, false
	}
	v, ok := section[name]
	return v, ok
}

// met applies one operator. Unrecognized operators fail closed.
func met(cond Condition, value any, defined bool) bool {
	switch cond.Operator {
	case OpEq:
		return defined && looseEqual(value, cond.Value)
	case OpIn:
		options, ok := toSlice(cond.Value)
		if !ok || !defined {
			return false
		}
		for _, option := range options {
			if looseEqual(value, option) {
				return true
			}
		}
		return false
	case OpGt:
		c, ok := compare(value, cond.Value)
		return defined && ok && c > 0
	case OpLt:
		c, ok := compare(value, cond.Value)
		return defined && ok && c < 0
	case OpGte:
		c, ok := compare(value, cond.Value)
		return defined && ok && c >= 0
	case OpLte:
		c, ok := compare(value, cond.Value)
		return defined && ok && c <= 0
	case OpContains:
		s, ok := value.(string)
		sub, ok2 := cond.Value.(string)
		return defined && ok && ok2 && strings.Contains(s, sub)
	case OpExists:
		return defined && value != nil
	default:
		return false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// looseEqual is strict on type families: numbers are normalized so a
// decoded JSON float64 equals the int declared on the condition, but a
// numeric string never equals a number.
func looseEqual(a, b any) bool {
	fa, aok := toNumber(a)
	fb, bok := toNumber(b)
	if aok || bok {
		return aok && bok && fa == fb
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) && fmt.Sprint(a) == fmt.Sprint(b)
}

func toNumber(v any) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return toFloat(v)
}

// compare orders numerically when both sides parse as numbers, otherwise
// lexicographically when both are strings. Any other pairing reports
// ok=false, and every ordering operator treats that as not met.
func compare(a, b any) (int, bool) {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
