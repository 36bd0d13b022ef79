package isisgo

import (
	"os"
	"testing"
)

func openTestLockFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "lock")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFileLockSharedAndExclusive(t *testing.T) {
	f := openTestLockFile(t)
	l := &fileLock{}
	l.setFile(f)

	if err := l.Lock(LockShared); err != nil {
		t.Fatalf("Lock(shared): %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := l.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock(exclusive): %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestFileLockNoopAfterClearedFile(t *testing.T) {
	l := &fileLock{}
	l.setFile(nil)

	if err := l.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock on cleared handle should be a no-op, got: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock on cleared handle should be a no-op, got: %v", err)
	}
}

func TestFileLockReacquireAfterReopen(t *testing.T) {
	f := openTestLockFile(t)
	l := &fileLock{}
	l.setFile(f)

	if err := l.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	l.setFile(nil)
	if err := l.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock after clearing should be a no-op, got: %v", err)
	}

	l.setFile(f)
	if err := l.Lock(LockShared); err != nil {
		t.Fatalf("Lock after reopen: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock after reopen: %v", err)
	}
}
