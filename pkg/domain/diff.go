package domain

// DiffStatus classifies a field's position in an old-vs-new comparison.
type DiffStatus string

const (
	DiffChanged   DiffStatus = "changed"   // present on both sides with different values
	DiffUnchanged DiffStatus = "unchanged" // present on both sides with equal values
	DiffAdded     DiffStatus = "added"     // present only in the new snapshot
	DiffRemoved   DiffStatus = "removed"   // present only in the old snapshot
)

// FieldDiff is one row of a rendered old-vs-new comparison. Old and New are
// display strings; a side absent from its snapshot renders as "N/A".
type FieldDiff struct {
	Field  string
	Old    string
	New    string
	Status DiffStatus
}

// Changed reports whether the field's value differs between the two sides.
// Fields present on only one side are not "changed" in the viewer's sense;
// they are additions or removals.
func (d FieldDiff) Changed() bool { return d.Status == DiffChanged }

// DiffSnapshots computes the per-field comparison between two snapshots,
// sorted by field name. Either side may be nil (INSERT has no old state,
// DELETE has no new state); missing sides render as "N/A".
func DiffSnapshots(oldData, newData Snapshot) []FieldDiff {
	keys := make(map[string]struct{}, len(oldData)+len(newData))
	for k := range oldData {
		keys[k] = struct{}{}
	}
	for k := range newData {
		keys[k] = struct{}{}
	}

	union := Snapshot{}
	for k := range keys {
		union[k] = Null()
	}

	diffs := make([]FieldDiff, 0, len(keys))
	for _, k := range union.Keys() {
		oldVal, oldOK := oldData.Get(k)
		newVal, newOK := newData.Get(k)

		d := FieldDiff{Field: k, Old: "N/A", New: "N/A"}
		switch {
		case oldOK && newOK:
			d.Old = oldVal.String()
			d.New = newVal.String()
			if oldVal.Equal(newVal) {
				d.Status = DiffUnchanged
			} else {
				d.Status = DiffChanged
			}
		case newOK:
			d.New = newVal.String()
			d.Status = DiffAdded
		default:
			d.Old = oldVal.String()
			d.Status = DiffRemoved
		}
		diffs = append(diffs, d)
	}
	return diffs
}
