//go:build windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"

	cxerrors "cxref/internal/errors"
)

const lockFile = "index.lock"

// Lock is an exclusive build lock on a data directory. Readers never take it.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the build lock in dataDir without blocking.
func AcquireLock(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, lockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(file.Fd()), flags, 0, 1, 0, ol); err != nil {
		_ = file.Close()
		msg := "index is locked by another build"
		if content, readErr := os.ReadFile(path); readErr == nil {
			if pid := strings.TrimSpace(string(content)); pid != "" {
				msg = fmt.Sprintf("index is locked by another build (PID %s)", pid)
			}
		}
		return nil, cxerrors.New(cxerrors.Locked, msg, err)
	}

	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	return &Lock{path: path, file: file}, nil
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, new(windows.Overlapped))
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
}
