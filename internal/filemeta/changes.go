package filemeta

import (
	"os"
	"sort"
)

// ChangeType classifies a file difference since the last build.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Change is one file that differs from its recorded entry.
type Change struct {
	Path       string     `json:"path" yaml:"path"`
	ChangeType ChangeType `json:"changeType" yaml:"changeType"`
}

// Changed compares recorded entries against the filesystem. current, when
// non-nil, is the file set a rebuild would index now; paths in it without an
// entry are reported as added. A file whose size and mtime match is assumed
// unchanged; otherwise its digest decides.
func Changed(recorded []Entry, current []string) ([]Change, error) {
	var changes []Change
	known := make(map[string]bool, len(recorded))
	for _, e := range recorded {
		known[e.Path] = true

		info, err := os.Stat(e.Path)
		if os.IsNotExist(err) {
			changes = append(changes, Change{Path: e.Path, ChangeType: ChangeDeleted})
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.Size() == e.Size && info.ModTime().UnixNano() == e.ModTime {
			continue
		}
		now, err := Stat(e.Path)
		if err != nil {
			return nil, err
		}
		if now.Digest != e.Digest {
			changes = append(changes, Change{Path: e.Path, ChangeType: ChangeModified})
		}
	}

	for _, p := range current {
		if !known[p] {
			known[p] = true
			changes = append(changes, Change{Path: p, ChangeType: ChangeAdded})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
