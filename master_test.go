package isisgo

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *MasterFile {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, "test", DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteReadRoundTrip(t *testing.T) {
	db := openTestStore(t)

	rec := NewRecord(db.cfg)
	rec.Set(10, "value")
	rec.Set(90, []string{"alpha", "beta", "gamma"})

	if err := db.Write(rec, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.MFN != 1 {
		t.Fatalf("mfn = %d, want 1", rec.MFN)
	}

	got, err := db.Read(1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f, ok := got.Field(10); !ok || f.Data != "value" {
		t.Fatalf("field 10 = %+v", f)
	}
	rf, ok := got.Repeatable(90)
	if !ok || rf.Len() != 3 || rf.Data(",") != "alpha,beta,gamma" {
		t.Fatalf("field 90 = %+v", rf)
	}
	if got.Status != StatusActive {
		t.Fatalf("status = %v", got.Status)
	}
}

func TestDeleteUndeleteRoundTrip(t *testing.T) {
	db := openTestStore(t)
	rec := NewRecord(db.cfg)
	rec.Set(1, "x")
	if err := db.Write(rec, false); err != nil {
		t.Fatal(err)
	}

	if err := db.Delete(rec.MFN); err != nil {
		t.Fatalf("delete: %v", err)
	}
	deleted, err := db.Read(rec.MFN)
	if err != nil {
		t.Fatalf("read after delete: %v", err)
	}
	if deleted.Status != StatusLogicallyDeleted {
		t.Fatalf("status after delete = %v, want logically deleted", deleted.Status)
	}
	if err := db.Delete(rec.MFN); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("double delete: %v", err)
	}

	if err := db.Undelete(rec.MFN); err != nil {
		t.Fatalf("undelete: %v", err)
	}
	got, err := db.Read(rec.MFN)
	if err != nil {
		t.Fatalf("read after undelete: %v", err)
	}
	if f, _ := got.Field(1); f.Data != "x" {
		t.Fatalf("data after undelete = %+v", f)
	}
}

func TestUpdateKeepsBackwardPointer(t *testing.T) {
	db := openTestStore(t)
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
	if updated.MFBWB == 0 && updated.MFBWP == 0 {
		t.Fatalf("expected non-zero backward pointer after update")
	}

	current, err := db.Read(mfn)
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := current.Field(1); f.Data != "v2" {
		t.Fatalf("current data = %+v", f)
	}

	prev, err := db.Previous(current)
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil {
		t.Fatal("expected a previous version")
	}
	if f, _ := prev.Field(1); f.Data != "v1" {
		t.Fatalf("previous data = %+v", f)
	}
}

func TestIterateIncludesLogicallyDeleted(t *testing.T) {
	db := openTestStore(t)
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

	var seen []int
	statuses := map[int]Status{}
	for mfn, rec := range db.Iterate() {
		seen = append(seen, mfn)
		statuses[mfn] = rec.Status
	}
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Fatalf("iterate seen = %v", seen)
	}
	if statuses[2] != StatusLogicallyDeleted {
		t.Fatalf("mfn 2 status = %v, want logically deleted", statuses[2])
	}
}
