// Package frontend turns translation units into symbol forest nodes. A
// front-end is handed one unit at a time and appends that unit's cursors
// under a parent node of a shared forest.
package frontend

import (
	"context"
	"path/filepath"
	"strings"

	cxerrors "cxref/internal/errors"
	"cxref/internal/paths"
	"cxref/internal/symbols"
)

// TranslationUnit is one source file plus the ordered command-line
// arguments it was compiled with.
type TranslationUnit struct {
	Path string   `json:"path" toml:"path"`
	Args []string `json:"args,omitempty" toml:"args,omitempty"`
}

// Frontend appends the cursor tree of a translation unit to a forest.
type Frontend interface {
	Name() string
	Parse(ctx context.Context, tu TranslationUnit, forest *symbols.Forest, parent symbols.Index) error
}

// Names of the built-in front-ends.
const (
	TreeSitterName = "treesitter"
	SCIPName       = "scip"
)

// Options select and configure a front-end.
type Options struct {
	// SCIPPath is the SCIP index the scip front-end imports.
	SCIPPath string
	// ProjectRoot overrides the project root recorded in a SCIP index.
	ProjectRoot string
}

// New returns the named front-end.
func New(name string, opts Options) (Frontend, error) {
	switch name {
	case TreeSitterName, "":
		ts, err := NewTreeSitter()
		if err != nil {
			return nil, err
		}
		return ts, nil
	case SCIPName:
		s, err := LoadSCIP(opts.SCIPPath, opts.ProjectRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, cxerrors.Newf(cxerrors.PreconditionViolation, "unknown front-end %q", name)
}

// Language is a source language a front-end can parse.
type Language string

const (
	LangUnknown Language = ""
	LangC       Language = "c"
	LangCPP     Language = "c++"
)

var extLanguages = map[string]Language{
	".c":   LangC,
	".h":   LangCPP,
	".cc":  LangCPP,
	".cp":  LangCPP,
	".cpp": LangCPP,
	".cxx": LangCPP,
	".c++": LangCPP,
	".hh":  LangCPP,
	".hpp": LangCPP,
	".hxx": LangCPP,
	".h++": LangCPP,
	".ipp": LangCPP,
	".inl": LangCPP,
}

// DetectLanguage picks the language of tu. An explicit -x argument wins
// over the file extension, then a C -std= selects C for ambiguous headers.
func DetectLanguage(tu TranslationUnit) Language {
	stdC := false
	for i := 0; i < len(tu.Args); i++ {
		arg := tu.Args[i]
		var lang string
		switch {
		case arg == "-x" && i+1 < len(tu.Args):
			i++
			lang = tu.Args[i]
		case strings.HasPrefix(arg, "-x") && len(arg) > 2:
			lang = arg[2:]
		case strings.HasPrefix(arg, "-std=c") && !strings.HasPrefix(arg, "-std=c++"):
			stdC = true
			continue
		default:
			continue
		}
		switch lang {
		case "c", "c-header":
			return LangC
		case "c++", "c++-header":
			return LangCPP
		}
	}

	ext := strings.ToLower(filepath.Ext(tu.Path))
	lang := extLanguages[ext]
	if lang == LangCPP && ext == ".h" && stdC {
		return LangC
	}
	return lang
}

// IsSource reports whether path has a C or C++ extension.
func IsSource(path string) bool {
	_, ok := extLanguages[strings.ToLower(filepath.Ext(path))]
	return ok
}

func checkUnit(tu TranslationUnit) (string, error) {
	canon, err := paths.Canonicalize(tu.Path)
	if err != nil {
		return "", err
	}
	return canon, nil
}
