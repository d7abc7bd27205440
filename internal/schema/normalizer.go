package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"pumpcore/pkg/domain"
)

// FieldError reports a single field that failed normalization. The failure
// is isolated: the field is set to null and the rest of the record is
// unaffected.
type FieldError struct {
	Field  string
	Value  any
	Policy Policy
	Err    error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q: cannot normalize %v as %s: %v", e.Field, e.Value, e.Policy, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// Normalizer converts raw, possibly-string, possibly-empty field maps into
// typed snapshots according to a policy table. It is pure: the same input
// always yields the same output and nothing is mutated.
type Normalizer struct {
	policies PolicyTable
}

// NewNormalizer builds a normalizer over the given policy table.
func NewNormalizer(policies PolicyTable) *Normalizer {
	return &Normalizer{policies: policies}
}

// Normalize cleans a raw field map. Empty strings and nils become null;
// integer-policy values are parsed and truncated (never rounded); real-policy
// values are parsed as floats; everything else is stringified. A per-field
// parse failure sets that field to null and reports a FieldError without
// aborting the record. Reserved columns are skipped entirely.
func (n *Normalizer) Normalize(raw map[string]any) (domain.Snapshot, []FieldError) {
	if raw == nil {
		return domain.Snapshot{}, nil
	}
	out := make(domain.Snapshot, len(raw))
	var errs []FieldError
	for field, value := range raw {
		if Reserved(field) {
			continue
		}
		v, err := n.normalizeField(field, value)
		if err != nil {
			errs = append(errs, FieldError{Field: field, Value: value, Policy: n.policies.PolicyFor(field), Err: err})
			out[field] = domain.Null()
			continue
		}
		out[field] = v
	}
	return out, errs
}

func (n *Normalizer) normalizeField(field string, value any) (domain.FieldValue, error) {
	if isMissing(value) {
		return domain.Null(), nil
	}
	switch n.policies.PolicyFor(field) {
	case PolicyInteger:
		return normalizeInteger(value)
	case PolicyReal:
		return normalizeReal(value)
	default:
		return normalizeText(value), nil
	}
}

func isMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return math.IsNaN(v)
	case domain.FieldValue:
		return v.IsNull()
	default:
		return false
	}
}

// normalizeInteger parses numeric input and truncates any fractional part.
// "12.9" becomes 12, not 13.
func normalizeInteger(value any) (domain.FieldValue, error) {
	switch v := value.(type) {
	case int:
		return domain.Int(int64(v)), nil
	case int64:
		return domain.Int(v), nil
	case float64:
		return domain.Int(int64(math.Trunc(v))), nil
	case float32:
		return domain.Int(int64(math.Trunc(float64(v)))), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return domain.Null(), fmt.Errorf("not numeric")
		}
		return domain.Int(int64(math.Trunc(f))), nil
	case domain.FieldValue:
		if i, ok := v.IntValue(); ok {
			return domain.Int(i), nil
		}
		if f, ok := v.FloatValue(); ok {
			return domain.Int(int64(math.Trunc(f))), nil
		}
		if s, ok := v.TextValue(); ok {
			return normalizeInteger(s)
		}
		return domain.Null(), nil
	default:
		return domain.Null(), fmt.Errorf("unsupported type %T", value)
	}
}

func normalizeReal(value any) (domain.FieldValue, error) {
	switch v := value.(type) {
	case int:
		return domain.Float(float64(v)), nil
	case int64:
		return domain.Float(float64(v)), nil
	case float64:
		return domain.Float(v), nil
	case float32:
		return domain.Float(float64(v)), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return domain.Null(), fmt.Errorf("not numeric")
		}
		return domain.Float(f), nil
	case domain.FieldValue:
		if f, ok := v.FloatValue(); ok {
			return domain.Float(f), nil
		}
		if i, ok := v.IntValue(); ok {
			return domain.Float(float64(i)), nil
		}
		if s, ok := v.TextValue(); ok {
			return normalizeReal(s)
		}
		return domain.Null(), nil
	default:
		return domain.Null(), fmt.Errorf("unsupported type %T", value)
	}
}

func normalizeText(value any) domain.FieldValue {
	switch v := value.(type) {
	case string:
		return domain.Text(v)
	case domain.FieldValue:
		return domain.Text(v.String())
	default:
		return domain.Text(fmt.Sprintf("%v", v))
	}
}
