//go:build !windows

package index

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	cxerrors "cxref/internal/errors"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	tmpDir := t.TempDir()

	// Acquire lock
	lock, err := AcquireLock(tmpDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if lock == nil {
		t.Fatal("expected non-nil lock")
	}

	// Verify lock file exists and contains PID
	lockPath := filepath.Join(tmpDir, lockFile)
	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}

	pid, err := strconv.Atoi(string(content))
	if err != nil {
		t.Fatalf("lock file should contain PID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("PID: got %d, want %d", pid, os.Getpid())
	}

	// Release lock
	lock.Release()

	// Verify lock file is removed
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed after release")
	}
}

func TestAcquireLock_AlreadyLocked(t *testing.T) {
	tmpDir := t.TempDir()

	// First lock should succeed
	lock1, err := AcquireLock(tmpDir)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer lock1.Release()

	// Second lock should fail
	lock2, err := AcquireLock(tmpDir)
	if err == nil {
		lock2.Release()
		t.Fatal("second AcquireLock should fail when already locked")
	}

	if !errors.Is(err, cxerrors.ErrLocked) {
		t.Errorf("error = %v, want LOCKED", err)
	}
	if !strings.Contains(err.Error(), strconv.Itoa(os.Getpid())) {
		t.Errorf("error %q should name the holder PID", err)
	}
}

func TestAcquireLock_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".cxref")

	// Directory doesn't exist yet
	if _, err := os.Stat(dataDir); !os.IsNotExist(err) {
		t.Fatal("dataDir should not exist yet")
	}

	// AcquireLock should create it
	lock, err := AcquireLock(dataDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	// Directory should now exist
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Error("dataDir should be created by AcquireLock")
	}
}

func TestAcquireLock_AfterRelease(t *testing.T) {
	tmpDir := t.TempDir()

	lock1, err := AcquireLock(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	lock1.Release()
	lock1.Release()

	lock2, err := AcquireLock(tmpDir)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	lock2.Release()
}

func TestReleaseLock_NilSafe(t *testing.T) {
	// Should not panic
	var lock *Lock
	lock.Release()
}
