package domain

import "testing"

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	snap := Snapshot{
		"Model No.":      Text("X9"),
		"Frequency (Hz)": Int(50),
		"Max Head (M)":   Float(12.5),
		"Remarks":        Null(),
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back) != len(snap) {
		t.Fatalf("expected %d fields, got %d", len(snap), len(back))
	}
	for k, want := range snap {
		got, ok := back.Get(k)
		if !ok {
			t.Fatalf("field %q missing after round trip", k)
		}
		if !got.Equal(want) {
			t.Fatalf("field %q: got %v (%s), want %v (%s)", k, got, got.Kind(), want, want.Kind())
		}
	}
}

func TestSnapshotNilEncodesToNothing(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil bytes for nil snapshot, got %s", data)
	}
	back, err := DecodeSnapshot(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if back != nil {
		t.Fatalf("expected nil snapshot, got %v", back)
	}
}

func TestSnapshotOfConvertsForeignTypes(t *testing.T) {
	snap := SnapshotOf(map[string]any{
		"HP":        5,
		"Max Head":  7.5,
		"Model No.": "A1",
		"Remarks":   nil,
	})
	if v, _ := snap.Get("HP"); v.Kind() != KindInt {
		t.Fatalf("HP should unwrap to int, got %s", v.Kind())
	}
	if v, _ := snap.Get("Remarks"); !v.IsNull() {
		t.Fatalf("nil should map to null")
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	orig := Snapshot{"HP": Int(5)}
	cp := orig.Clone()
	cp["HP"] = Int(7)
	if v, _ := orig.Get("HP"); !v.Equal(Int(5)) {
		t.Fatalf("clone mutation leaked into original")
	}
	if Snapshot(nil).Clone() != nil {
		t.Fatalf("nil clone should stay nil")
	}
}
