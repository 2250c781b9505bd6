//go:build !windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	cxerrors "cxref/internal/errors"
)

const lockFile = "index.lock"

// Lock is an exclusive build lock on a data directory. Readers never take it.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the build lock in dataDir without blocking.
// A held lock yields a LOCKED error naming the holder's PID when known.
func AcquireLock(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, lockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	fd := int(file.Fd())

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, lockedError(path, err)
	}

	fail := func(what string, err error) (*Lock, error) {
		_ = unix.Flock(fd, unix.LOCK_UN)
		_ = file.Close()
		return nil, fmt.Errorf("%s lock file: %w", what, err)
	}
	if err := file.Truncate(0); err != nil {
		return fail("truncating", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fail("seeking", err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return fail("writing PID to", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = os.Remove(l.path)
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

func lockedError(path string, cause error) error {
	msg := "index is locked by another build"
	if content, err := os.ReadFile(path); err == nil {
		if pid := strings.TrimSpace(string(content)); pid != "" {
			msg = fmt.Sprintf("index is locked by another build (PID %s)", pid)
		}
	}
	return cxerrors.New(cxerrors.Locked, msg, cause)
}
