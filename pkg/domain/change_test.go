package domain

import "testing"

func TestParseOperation(t *testing.T) {
	cases := []struct {
		raw     string
		want    Operation
		wantErr bool
	}{
		{"INSERT", OpInsert, false},
		{"update", OpUpdate, false},
		{" Delete ", OpDelete, false},
		{"PATCH", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseOperation(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseOperation(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseOperation(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseOperation(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestCoerceRecordID(t *testing.T) {
	cases := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"int", 7, 7, false},
		{"int64", int64(41), 41, false},
		{"numeric string", "42", 42, false},
		{"float string zero fraction", "42.0", 42, false},
		{"float integral", float64(9), 9, false},
		{"float fractional", 9.5, 0, true},
		{"garbage string", "abc", 0, true},
		{"empty string", "", 0, true},
		{"field value int", Int(3), 3, false},
		{"field value null", Null(), 0, true},
		{"unsupported type", []int{1}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CoerceRecordID(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoerceRecordID(%v): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("CoerceRecordID(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestIdentityActor(t *testing.T) {
	if got := Anonymous().Actor(); got != AnonymousActor {
		t.Fatalf("anonymous actor = %q", got)
	}
	if got := Authenticated("ops@example.com").Actor(); got != "ops@example.com" {
		t.Fatalf("authenticated actor = %q", got)
	}
	if Authenticated("").IsAuthenticated() {
		t.Fatalf("empty email should collapse to anonymous")
	}
}

func TestRecordFullSnapshotIncludesIdentifier(t *testing.T) {
	r := Record{RecordID: 12, Fields: Snapshot{"Model No.": Text("X9")}}
	full := r.FullSnapshot()
	id, ok := full.Get(RecordIDField)
	if !ok {
		t.Fatalf("identifier column missing from full snapshot")
	}
	if !id.Equal(Int(12)) {
		t.Fatalf("identifier = %v, want 12", id)
	}
	// The record's own fields must not gain the identifier as a side effect.
	if _, ok := r.Fields.Get(RecordIDField); ok {
		t.Fatalf("FullSnapshot mutated the record")
	}
}
