package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Operation is the closed set of mutation kinds a change entry may describe.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ParseOperation validates a raw operation string against the closed set.
func ParseOperation(raw string) (Operation, error) {
	switch Operation(strings.ToUpper(strings.TrimSpace(raw))) {
	case OpInsert:
		return OpInsert, nil
	case OpUpdate:
		return OpUpdate, nil
	case OpDelete:
		return OpDelete, nil
	default:
		return "", fmt.Errorf("unknown operation %q", raw)
	}
}

// Valid reports whether the operation belongs to the closed set.
func (op Operation) Valid() bool {
	return op == OpInsert || op == OpUpdate || op == OpDelete
}

// ChangeEntry is one immutable audit record describing a committed mutation.
// Entries are append-only: they are written exactly once after the mutation
// is durably applied and never updated or deleted, so they outlive the
// records they describe.
type ChangeEntry struct {
	ID          string     `json:"id"`
	TableName   string     `json:"table_name"`
	RecordID    int64      `json:"record_id"`
	Operation   Operation  `json:"operation"`
	OldData     Snapshot   `json:"old_data,omitempty"`
	NewData     Snapshot   `json:"new_data,omitempty"`
	ModifiedBy  string     `json:"modified_by"`
	ModifiedAt  time.Time  `json:"modified_at"`
	Description string     `json:"description,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e ChangeEntry) Clone() ChangeEntry {
	cp := e
	cp.OldData = e.OldData.Clone()
	cp.NewData = e.NewData.Clone()
	return cp
}

// CoerceRecordID resolves a record identifier from loosely typed input.
// Integral values and numeric strings (including float forms with a zero
// fraction) resolve; anything else is rejected rather than guessed at.
func CoerceRecordID(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("record id %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("record id %v is not integral", v)
		}
		return int64(v), nil
	case FieldValue:
		if i, ok := v.IntValue(); ok {
			return i, nil
		}
		if f, ok := v.FloatValue(); ok {
			return CoerceRecordID(f)
		}
		if s, ok := v.TextValue(); ok {
			return CoerceRecordID(s)
		}
		return 0, fmt.Errorf("record id is null")
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, fmt.Errorf("record id is empty")
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("record id %q is not an integer", v)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("record id has unsupported type %T", value)
	}
}
