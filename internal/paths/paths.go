package paths

import (
	"os"
	"path/filepath"
	"strings"

	cxerrors "cxref/internal/errors"
)

const (
	// DataDirName is the per-project directory holding config, manifest and store.
	DataDirName = ".cxref"
	// StoreFile is the default store blob filename inside DataDirName.
	StoreFile = "index.cxr"
	// LogsDirName holds build logs inside DataDirName.
	LogsDirName = "logs"
)

// ErrEscapesRoot is returned when a ".." segment has no directory left to remove.
var ErrEscapesRoot = cxerrors.Newf(cxerrors.PreconditionViolation, "path escapes the filesystem root")

// CanonicalizeBytes removes "/../" segments from the absolute path in buf, in place.
//
// The scan runs left to right once. On each "/../" it looks back for the nearest
// preceding '/', splices out the segment between that slash and the "..", and
// resumes just before the splice point so that a newly adjacent "/../" is seen.
// The returned slice shares buf's backing array; its length is the new length.
//
// A "/../" with no preceding directory (the path starts with "/../", or enough
// ".." segments pop past the root) is rejected with ErrEscapesRoot. A trailing
// "/.." without a terminating slash is outside the scan window and left as-is.
func CanonicalizeBytes(buf []byte) ([]byte, error) {
	if len(buf) == 0 || buf[0] != '/' {
		return buf, cxerrors.Newf(cxerrors.PreconditionViolation, "path %q is not absolute", buf)
	}
	for i := 0; i < len(buf)-3; i++ {
		if buf[i] != '/' || buf[i+1] != '.' || buf[i+2] != '.' || buf[i+3] != '/' {
			continue
		}
		j := i - 1
		for j >= 0 && buf[j] != '/' {
			j--
		}
		if j < 0 {
			return buf, ErrEscapesRoot
		}
		n := copy(buf[j:], buf[i+3:])
		buf = buf[:j+n]
		removed := i + 3 - j
		i -= removed
		if i < -1 {
			i = -1
		}
	}
	return buf, nil
}

// Canonicalize is CanonicalizeBytes for strings.
func Canonicalize(p string) (string, error) {
	b, err := CanonicalizeBytes([]byte(p))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Resolve makes p absolute against cwd and canonicalizes it.
// Relative inputs drop empty and "." segments before joining.
func Resolve(p, cwd string) (string, error) {
	if p == "" {
		return "", cxerrors.Newf(cxerrors.PreconditionViolation, "empty path")
	}
	p = NormalizePath(p)
	if strings.HasPrefix(p, "/") {
		return Canonicalize(p)
	}
	cwd = NormalizePath(cwd)
	if !strings.HasPrefix(cwd, "/") {
		return "", cxerrors.Newf(cxerrors.PreconditionViolation, "cannot resolve %q: working directory %q is not absolute", p, cwd)
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(cwd, "/"))
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." {
			continue
		}
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return Canonicalize(b.String())
}

// RepoRelative converts an absolute path to a root-relative path with forward slashes.
// Symlinks are resolved where the files exist.
func RepoRelative(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			repoRootResolved = repoRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRepo checks if a path is within the repository root
func IsWithinRepo(path string, repoRoot string) bool {
	rel, err := RepoRelative(path, repoRoot)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// NormalizePath converts backslashes to forward slashes
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// JoinRepoPath joins a repo root with a root-relative path
func JoinRepoPath(repoRoot string, relPath string) string {
	parts := strings.Split(NormalizePath(relPath), "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}

// DataDir returns <repoRoot>/.cxref
func DataDir(repoRoot string) string {
	return filepath.Join(repoRoot, DataDirName)
}

// StorePath returns the default store blob path for a project.
func StorePath(repoRoot string) string {
	return filepath.Join(DataDir(repoRoot), StoreFile)
}

// LogsDir returns <repoRoot>/.cxref/logs
func LogsDir(repoRoot string) string {
	return filepath.Join(DataDir(repoRoot), LogsDirName)
}

// EnsureDataDir creates the .cxref directory if needed and returns its path.
func EnsureDataDir(repoRoot string) (string, error) {
	dir := DataDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
