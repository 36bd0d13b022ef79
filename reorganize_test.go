package isisgo

import "testing"

func TestReorganizeDropsLogicallyDeletedRecords(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, "test", DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 3; i++ {
		rec := NewRecord(db.cfg)
		rec.Set(1, "x")
		if err := db.Write(rec, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Delete(2); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if err := Reorganize(dir, "test", DefaultConfig(), ReorganizeOptions{PurgeHistory: true}); err != nil {
		t.Fatalf("reorganize: %v", err)
	}

	out, err := Open(dir, "test", DefaultConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer out.Close()

	var seen []int
	for mfn := range out.Iterate() {
		seen = append(seen, mfn)
	}
	if len(seen) != 2 {
		t.Fatalf("seen = %v, want 2 active records", seen)
	}
}

func TestReorganizePreservesHistoryChain(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, "test", DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := NewRecord(db.cfg)
	rec.Set(1, "v1")
	if err := db.Write(rec, false); err != nil {
		t.Fatal(err)
	}
	mfn := rec.MFN

	updated := NewRecord(db.cfg)
	updated.MFN = mfn
	updated.Set(1, "v2")
	if err := db.Write(updated, false); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if err := Reorganize(dir, "test", DefaultConfig(), ReorganizeOptions{PurgeHistory: false}); err != nil {
		t.Fatalf("reorganize: %v", err)
	}

	out, err := Open(dir, "test", DefaultConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer out.Close()

	current, err := out.Read(mfn)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if f, _ := current.Field(1); f.Data != "v2" {
		t.Fatalf("current data = %+v, want v2", f)
	}

	prev, err := out.Previous(current)
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if prev == nil {
		t.Fatal("expected the reorganized file to retain the previous version")
	}
	if prev.MFN != current.MFN {
		t.Fatalf("previous mfn = %d, want same mfn %d as current", prev.MFN, current.MFN)
	}
	if f, _ := prev.Field(1); f.Data != "v1" {
		t.Fatalf("previous data = %+v, want v1", f)
	}
}
