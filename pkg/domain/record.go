package domain

// RecordIDField is the reserved identifier column of the managed record set.
// It is assigned by the allocator on insert, is never user-editable and is
// never null once assigned.
const RecordIDField = "DB ID"

// Record is one row of the managed record set: a unique numeric identifier
// plus a snapshot of the remaining columns.
type Record struct {
	RecordID int64    `json:"record_id"`
	Fields   Snapshot `json:"fields"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	cp := r
	cp.Fields = r.Fields.Clone()
	return cp
}

// FullSnapshot returns the record's fields including the identifier column,
// which is how before/after states are captured in change entries.
func (r Record) FullSnapshot() Snapshot {
	out := r.Fields.Clone()
	if out == nil {
		out = Snapshot{}
	}
	out[RecordIDField] = Int(r.RecordID)
	return out
}
