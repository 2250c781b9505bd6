// Package version holds build version information for cxref.
package version

import (
	"fmt"
	"runtime"

	"cxref/internal/store"
)

// Overridden at build time:
// go build -ldflags "-X cxref/internal/version.Version=1.0.0 -X cxref/internal/version.Commit=abc123"
var (
	// Version is the semantic version of cxref
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// BuildInfo is the structured form printed by `cxref version --format json`.
type BuildInfo struct {
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildDate   string `json:"buildDate" yaml:"buildDate"`
	StoreFormat uint32 `json:"storeFormat" yaml:"storeFormat"`
	GoVersion   string `json:"goVersion" yaml:"goVersion"`
}

// Get returns the build information of the running binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:     Version,
		Commit:      Commit,
		BuildDate:   BuildDate,
		StoreFormat: store.DefaultFormat.Version,
		GoVersion:   runtime.Version(),
	}
}

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// String renders b the way `cxref version` prints it.
func (b BuildInfo) String() string {
	return fmt.Sprintf("cxref version %s\nCommit: %s\nBuilt: %s\nStore format: %d\nGo: %s",
		b.Version, b.Commit, b.BuildDate, b.StoreFormat, b.GoVersion)
}
