package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// RotatingFile is an append-only writer that moves the file to path.1,
// path.2 and so on once it would grow past maxSize bytes. At most
// maxBackups old files are kept.
type RotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
	mu         sync.Mutex
}

// OpenRotatingFile opens path for appending. A maxSize of 0 disables rotation.
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	rf := &RotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := rf.openFile(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (r *RotatingFile) openFile() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

// Write rotates first when p would push the file past maxSize.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.maxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		// On failure keep writing to whatever file is open.
		_ = r.rotate()
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close implements io.Closer
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	if r.maxBackups > 0 {
		_ = os.Remove(r.backupPath(r.maxBackups))
		for i := r.maxBackups - 1; i >= 1; i-- {
			if _, err := os.Stat(r.backupPath(i)); err == nil {
				_ = os.Rename(r.backupPath(i), r.backupPath(i+1))
			}
		}
		_ = os.Rename(r.path, r.backupPath(1))
	} else {
		_ = os.Remove(r.path)
	}
	r.size = 0
	return r.openFile()
}

func (r *RotatingFile) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(B|KB|MB|GB)?$`)

// ParseSize parses sizes like "10MB", "512KB" or "2048". It returns 0 for
// empty or invalid input.
func ParseSize(s string) int64 {
	m := sizePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	multiplier := float64(1)
	switch m[2] {
	case "KB":
		multiplier = 1 << 10
	case "MB":
		multiplier = 1 << 20
	case "GB":
		multiplier = 1 << 30
	}
	return int64(value * multiplier)
}

// OpenRotating returns a logger writing to a RotatingFile at path, plus the
// file to close.
func OpenRotating(path string, maxSize int64, maxBackups int, config Config) (*Logger, *RotatingFile, error) {
	rf, err := OpenRotatingFile(path, maxSize, maxBackups)
	if err != nil {
		return nil, nil, err
	}
	config.Output = rf
	return NewLogger(config), rf, nil
}
