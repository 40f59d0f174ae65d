package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/SAP-F-2025/vrp-import-service/internal/similarity"
)

// PairedCoordinates requires latitude and longitude to be given together
func PairedCoordinates(latField, lonField string) Rule {
	return func(values map[string]any) []RuleViolation {
		_, hasLat := values[latField]
		_, hasLon := values[lonField]
		switch {
		case hasLat && !hasLon:
			return []RuleViolation{{Field: lonField, Rule: "paired_coordinates", Message: fmt.Sprintf("%s is required when %s is set", lonField, latField)}}
		case hasLon && !hasLat:
			return []RuleViolation{{Field: latField, Rule: "paired_coordinates", Message: fmt.Sprintf("%s is required when %s is set", latField, lonField)}}
		}
		return nil
	}
}

// RequireOneOf requires at least one of fields to carry a value
func RequireOneOf(name string, fields ...string) Rule {
	return func(values map[string]any) []RuleViolation {
		for _, f := range fields {
			if _, ok := values[f]; ok {
				return nil
			}
		}
		return []RuleViolation{{
			Field:   fields[0],
			Rule:    "require_one_of",
			Message: fmt.Sprintf("a %s is required: set one of %s", name, strings.Join(fields, ", ")),
		}}
	}
}

// StringValue returns a non-empty string field
func StringValue(values map[string]any, field string) (string, bool) {
	v, ok := values[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// NumberValue returns a numeric field
func NumberValue(values map[string]any, field string) (float64, bool) {
	return toFloat(values[field])
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

const coordinateEpsilon = 1e-6

// ValuesEqual compares two field values; strings are compared after normalization
func ValuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && similarity.Normalize(av) == similarity.Normalize(bv)
	case []float64:
		bv, ok := b.([]float64)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if math.Abs(av[i]-bv[i]) > coordinateEpsilon {
				return false
			}
		}
		return true
	}
	an, aok := toFloat(a)
	bn, bok := toFloat(b)
	if aok && bok {
		return math.Abs(an-bn) <= coordinateEpsilon
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
