package domain

import (
	"encoding/json"
	"sort"
)

// Snapshot is a full field-name-to-value mapping representing one record's
// state at an instant. It is the wire format the change recorder writes and
// the change viewer reads back, so its JSON encoding is load-bearing.
type Snapshot map[string]FieldValue

// Clone returns an independent copy of the snapshot. A nil snapshot clones
// to nil so "absent" survives a round trip.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order for deterministic rendering.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for a field; absent fields report ok=false.
func (s Snapshot) Get(field string) (FieldValue, bool) {
	v, ok := s[field]
	return v, ok
}

// SnapshotOf builds a snapshot from an arbitrary raw field map, converting
// every value through FieldValueOf. The result is always serializable.
func SnapshotOf(raw map[string]any) Snapshot {
	if raw == nil {
		return nil
	}
	out := make(Snapshot, len(raw))
	for k, v := range raw {
		out[k] = FieldValueOf(v)
	}
	return out
}

// EncodeSnapshot serializes a snapshot to JSON. Nil encodes to nil bytes so
// callers can store SQL NULL for an absent side.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// DecodeSnapshot parses JSON previously produced by EncodeSnapshot. Empty
// input yields a nil snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
