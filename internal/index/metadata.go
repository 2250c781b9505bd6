// Package index builds the store and tracks whether it is still current.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cxerrors "cxref/internal/errors"
	"cxref/internal/filemeta"
	"cxref/internal/store"
)

const (
	// MetadataVersion is the current version of the metadata format.
	MetadataVersion = 1

	// metadataFile is the filename for index metadata.
	metadataFile = "index-meta.json"
)

// IndexMeta describes the last successful store build.
type IndexMeta struct {
	Version       int       `json:"version" yaml:"version"`
	BuildID       string    `json:"buildId" yaml:"buildId"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	StorePath     string    `json:"storePath" yaml:"storePath"`
	NodeCount     int       `json:"nodeCount" yaml:"nodeCount"`
	FileCount     int       `json:"fileCount" yaml:"fileCount"`
	Frontend      string    `json:"frontend" yaml:"frontend"`
	FormatVersion uint32    `json:"formatVersion" yaml:"formatVersion"`
	IDWidth       int       `json:"idWidth" yaml:"idWidth"`
	Duration      string    `json:"duration" yaml:"duration"`
}

// FreshnessResult describes index freshness status.
type FreshnessResult struct {
	Fresh           bool              `json:"fresh" yaml:"fresh"`
	Reason          string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	RequiresRebuild bool              `json:"requiresRebuild" yaml:"requiresRebuild"`
	IndexAge        string            `json:"indexAge,omitempty" yaml:"indexAge,omitempty"`
	Changes         []filemeta.Change `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// LoadMeta loads index metadata from the data directory.
// Returns nil without error if no metadata file exists.
func LoadMeta(dataDir string) (*IndexMeta, error) {
	path := filepath.Join(dataDir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}

	var meta IndexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing index metadata: %w", err)
	}

	// Version mismatch - treat as no metadata
	if meta.Version != MetadataVersion {
		return nil, nil
	}

	return &meta, nil
}

// Save writes index metadata to the data directory via temp file and rename.
func (m *IndexMeta) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	m.Version = MetadataVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}

	path := filepath.Join(dataDir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

// CheckFreshness compares the store's recorded file metadata with the
// given source paths. A store that no longer opens needs a rebuild.
func (m *IndexMeta) CheckFreshness(current []string) FreshnessResult {
	if m == nil {
		return FreshnessResult{
			Reason:          "no index metadata found",
			RequiresRebuild: true,
		}
	}

	result := FreshnessResult{IndexAge: humanDuration(time.Since(m.CreatedAt))}

	if m.FormatVersion != store.DefaultFormat.Version {
		result.Reason = fmt.Sprintf("store format %d differs from %d", m.FormatVersion, store.DefaultFormat.Version)
		result.RequiresRebuild = true
		return result
	}

	st, err := store.OpenFile(m.StorePath)
	if err != nil {
		result.Reason = err.Error()
		result.RequiresRebuild = cxerrors.RequiresRebuild(err)
		return result
	}
	defer st.Close()

	recorded, err := filemeta.Decode(st.FileData())
	if err != nil {
		result.Reason = err.Error()
		result.RequiresRebuild = true
		return result
	}

	changes, err := filemeta.Changed(recorded, current)
	if err != nil {
		result.Reason = fmt.Sprintf("checking files: %v", err)
		return result
	}
	if len(changes) > 0 {
		result.Changes = changes
		result.Reason = describeChanges(changes)
		return result
	}

	result.Fresh = true
	return result
}

func describeChanges(changes []filemeta.Change) string {
	counts := map[filemeta.ChangeType]int{}
	for _, c := range changes {
		counts[c.ChangeType]++
	}
	if len(changes) == 1 {
		return fmt.Sprintf("%s %s", changes[0].Path, changes[0].ChangeType)
	}
	return fmt.Sprintf("%d file(s) changed (%d added, %d modified, %d deleted)",
		len(changes), counts[filemeta.ChangeAdded], counts[filemeta.ChangeModified], counts[filemeta.ChangeDeleted])
}

// humanDuration formats a duration in human-readable form.
func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
