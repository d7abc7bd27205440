// Package domain defines the core value model shared by the record store,
// the change recorder and the change viewer: typed field values, record
// snapshots, change log entries and acting identities.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldKind identifies one of the closed set of value classes a field may hold.
type FieldKind string

const (
	KindNull  FieldKind = "null"
	KindInt   FieldKind = "int"
	KindFloat FieldKind = "float"
	KindText  FieldKind = "text"
)

// FieldValue is a closed variant holding exactly one of: null, int64,
// float64 or string. The zero value is Null. Using a closed set keeps every
// snapshot serializable without runtime type sniffing downstream.
type FieldValue struct {
	kind FieldKind
	i    int64
	f    float64
	s    string
}

// Null returns the null field value.
func Null() FieldValue { return FieldValue{kind: KindNull} }

// Int builds an integer field value.
func Int(v int64) FieldValue { return FieldValue{kind: KindInt, i: v} }

// Float builds a real-valued field value.
func Float(v float64) FieldValue { return FieldValue{kind: KindFloat, f: v} }

// Text builds a text field value.
func Text(v string) FieldValue { return FieldValue{kind: KindText, s: v} }

// Kind reports the variant held by the value. The zero value reports KindNull.
func (v FieldValue) Kind() FieldKind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether the value is the null variant.
func (v FieldValue) IsNull() bool { return v.Kind() == KindNull }

// IntValue returns the integer payload; ok is false for other variants.
func (v FieldValue) IntValue() (int64, bool) { return v.i, v.Kind() == KindInt }

// FloatValue returns the float payload; ok is false for other variants.
func (v FieldValue) FloatValue() (float64, bool) { return v.f, v.Kind() == KindFloat }

// TextValue returns the string payload; ok is false for other variants.
func (v FieldValue) TextValue() (string, bool) { return v.s, v.Kind() == KindText }

// Equal reports whether two values hold the same variant and payload.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindText:
		return v.s == other.s
	default:
		return true
	}
}

// String renders the value for display. Null renders as "N/A" to match the
// change viewer's presentation of absent data.
func (v FieldValue) String() string {
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	default:
		return "N/A"
	}
}

// MarshalJSON encodes the payload as plain JSON: null, number or string.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			// NaN/Inf are not representable in JSON; degrade to text.
			return json.Marshal(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
		return json.Marshal(v.f)
	case KindText:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, numbers and strings back into the matching
// variant. Numbers without a fractional part decode as Int so a snapshot
// round-trips losslessly.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Null()
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	if i, err := num.Int64(); err == nil && !strings.ContainsAny(num.String(), ".eE") {
		*v = Int(i)
		return nil
	}
	f, err := num.Float64()
	if err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	*v = Float(f)
	return nil
}

// FieldValueOf converts an arbitrary runtime value into the closed variant
// set. Numeric-like types unwrap to Int or Float, nil maps to Null, booleans
// and anything else fall back to their string form. The conversion never
// fails, which guarantees any snapshot handed to the change recorder is
// serializable.
func FieldValueOf(value any) FieldValue {
	switch v := value.(type) {
	case nil:
		return Null()
	case FieldValue:
		return v
	case string:
		return Text(v)
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return Int(int64(v))
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return Int(int64(v))
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case json.Number:
		var fv FieldValue
		if err := fv.UnmarshalJSON([]byte(v.String())); err == nil {
			return fv
		}
		return Text(v.String())
	case *string:
		if v == nil {
			return Null()
		}
		return Text(*v)
	case fmt.Stringer:
		return Text(v.String())
	default:
		return Text(fmt.Sprintf("%v", v))
	}
}
