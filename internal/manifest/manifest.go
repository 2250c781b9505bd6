// Package manifest reads the project manifest (.cxref/project.toml) that
// lists the translation units to index and the arguments they compile with.
package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"

	cxerrors "cxref/internal/errors"
	"cxref/internal/frontend"
	"cxref/internal/paths"
)

// FileName is the manifest's name inside the data directory.
const FileName = "project.toml"

// CurrentVersion is the manifest schema version written by Save.
const CurrentVersion = 1

// Unit declares one translation unit explicitly.
type Unit struct {
	// Path is absolute or relative to the project root.
	Path string `toml:"path"`
	// Args replace the manifest-wide args for this unit.
	Args []string `toml:"args,omitempty"`
}

// Manifest is the parsed project manifest.
type Manifest struct {
	Version int `toml:"version"`

	// Sources are directories, relative to the project root, scanned for
	// files with an indexed extension.
	Sources []string `toml:"sources"`

	// Args are the compiler arguments of every scanned source.
	Args []string `toml:"args,omitempty"`

	// Units are declared explicitly and keep their own args.
	Units []Unit `toml:"unit,omitempty"`

	// Undecoded lists keys present in the file that no field consumed.
	Undecoded []string `toml:"-"`
}

// Default returns the manifest `cxref init` writes.
func Default() *Manifest {
	return &Manifest{
		Version: CurrentVersion,
		Sources: []string{"."},
		Args:    []string{},
	}
}

// Path returns the manifest location for a project root.
func Path(repoRoot string) string {
	return filepath.Join(paths.DataDir(repoRoot), FileName)
}

// Load reads the manifest at path. A missing file yields the default manifest.
func Load(path string) (*Manifest, error) {
	m := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return m, nil
	}
	md, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, cxerrors.New(cxerrors.PreconditionViolation, "parsing manifest "+path, err)
	}
	for _, key := range md.Undecoded() {
		m.Undecoded = append(m.Undecoded, key.String())
	}
	if m.Version < 1 {
		m.Version = CurrentVersion
	}
	if m.Version > CurrentVersion {
		return nil, cxerrors.Newf(cxerrors.VersionMismatch, "manifest version %d is newer than %d", m.Version, CurrentVersion)
	}
	for i, u := range m.Units {
		if u.Path == "" {
			return nil, cxerrors.Newf(cxerrors.PreconditionViolation, "manifest unit[%d] missing required 'path'", i)
		}
	}
	return m, nil
}

// Save writes m to path, creating the parent directory.
func (m *Manifest) Save(path string) error {
	data, err := gotoml.Marshal(m)
	if err != nil {
		return cxerrors.New(cxerrors.InternalError, "encoding manifest", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return cxerrors.New(cxerrors.InternalError, "creating manifest directory", err)
	}
	var buf bytes.Buffer
	buf.WriteString("# cxref project manifest\n")
	buf.Write(data)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return cxerrors.New(cxerrors.InternalError, "writing manifest", err)
	}
	return nil
}

// ScanOptions filter the files ResolveUnits discovers.
type ScanOptions struct {
	Extensions       []string
	Ignore           []string
	MaxFileSizeBytes int64
}

var skipDirs = map[string]bool{
	".git":            true,
	paths.DataDirName: true,
	"node_modules":    true,
	"vendor":          true,
	"build":           true,
	"out":             true,
}

// ResolveUnits resolves the manifest into translation units with canonical
// absolute paths, sorted by path. Explicit units override scanned ones.
func (m *Manifest) ResolveUnits(repoRoot string, opts ScanOptions) ([]frontend.TranslationUnit, error) {
	root, err := paths.Canonicalize(filepath.ToSlash(repoRoot))
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	units := make(map[string]frontend.TranslationUnit)
	for _, src := range m.Sources {
		dir, err := paths.Resolve(src, root)
		if err != nil {
			return nil, err
		}
		err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil //nolint:nilerr // unreadable entries are skipped
			}
			rel, _ := filepath.Rel(root, p)
			rel = filepath.ToSlash(rel)
			if info.IsDir() {
				if p != dir && (skipDirs[info.Name()] || ignored(rel, info.Name(), opts.Ignore)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !exts[strings.ToLower(filepath.Ext(p))] || ignored(rel, info.Name(), opts.Ignore) {
				return nil
			}
			if opts.MaxFileSizeBytes > 0 && info.Size() > opts.MaxFileSizeBytes {
				return nil
			}
			canon, err := paths.Canonicalize(filepath.ToSlash(p))
			if err != nil {
				return err
			}
			units[canon] = frontend.TranslationUnit{Path: canon, Args: m.Args}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, u := range m.Units {
		p, err := paths.Resolve(u.Path, root)
		if err != nil {
			return nil, err
		}
		args := u.Args
		if args == nil {
			args = m.Args
		}
		units[p] = frontend.TranslationUnit{Path: p, Args: args}
	}

	out := make([]frontend.TranslationUnit, 0, len(units))
	for _, u := range units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func ignored(rel, base string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
