package frontend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/symbols"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		tu   TranslationUnit
		want Language
	}{
		{TranslationUnit{Path: "/p/a.c"}, LangC},
		{TranslationUnit{Path: "/p/a.cpp"}, LangCPP},
		{TranslationUnit{Path: "/p/a.HPP"}, LangCPP},
		{TranslationUnit{Path: "/p/a.h"}, LangCPP},
		{TranslationUnit{Path: "/p/a.h", Args: []string{"-std=c99"}}, LangC},
		{TranslationUnit{Path: "/p/a.h", Args: []string{"-std=c++17"}}, LangCPP},
		{TranslationUnit{Path: "/p/a.c", Args: []string{"-x", "c++"}}, LangCPP},
		{TranslationUnit{Path: "/p/a.cpp", Args: []string{"-xc"}}, LangC},
		{TranslationUnit{Path: "/p/a.txt"}, LangUnknown},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.tu); got != tt.want {
			t.Errorf("DetectLanguage(%+v) = %q, want %q", tt.tu, got, tt.want)
		}
	}
}

func TestIsSource(t *testing.T) {
	if !IsSource("/p/x.cc") || IsSource("/p/x.go") {
		t.Error("IsSource misclassified extensions")
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New("clang", Options{}); !errors.Is(err, cxerrors.ErrPreconditionViolation) {
		t.Errorf("New(clang) error = %v, want PRECONDITION_VIOLATION", err)
	}
	if _, err := New(SCIPName, Options{}); !errors.Is(err, cxerrors.ErrPreconditionViolation) {
		t.Errorf("New(scip) without path error = %v", err)
	}
}

const scipSource = "namespace app {\nclass Widget {\n  void run();\n};\n}\nvoid go() { app::Widget w; }\n"

func sampleIndex() *scippb.Index {
	def := int32(scippb.SymbolRole_Definition)
	return &scippb.Index{
		Metadata: &scippb.Metadata{ProjectRoot: "file:///proj"},
		Documents: []*scippb.Document{{
			RelativePath: "src/w.cpp",
			Text:         scipSource,
			Symbols: []*scippb.SymbolInformation{
				{Symbol: "scip-clang . . . app/", DisplayName: "app", Kind: scippb.SymbolInformation_Namespace},
				{Symbol: "scip-clang . . . app/Widget#", DisplayName: "Widget", Kind: scippb.SymbolInformation_Class},
				{Symbol: "scip-clang . . . app/Widget#run().", DisplayName: "run", Kind: scippb.SymbolInformation_Method},
				{Symbol: "scip-clang . . . go().", DisplayName: "go", Kind: scippb.SymbolInformation_Function},
			},
			Occurrences: []*scippb.Occurrence{
				{Symbol: "scip-clang . . . app/", Range: []int32{0, 10, 13}, SymbolRoles: def, EnclosingRange: []int32{0, 0, 4, 1}},
				{Symbol: "scip-clang . . . app/Widget#", Range: []int32{1, 6, 12}, SymbolRoles: def, EnclosingRange: []int32{1, 0, 3, 2}},
				{Symbol: "scip-clang . . . app/Widget#run().", Range: []int32{2, 7, 10}, SymbolRoles: def},
				{Symbol: "scip-clang . . . go().", Range: []int32{5, 5, 7}, SymbolRoles: def, EnclosingRange: []int32{5, 0, 30}},
				{Symbol: "scip-clang . . . app/Widget#", Range: []int32{5, 17, 23}},
				{Symbol: "local 3", Range: []int32{5, 24, 25}, SymbolRoles: def},
			},
		}},
	}
}

func TestSCIP_Parse(t *testing.T) {
	s, err := NewSCIP(sampleIndex(), "")
	if err != nil {
		t.Fatalf("NewSCIP: %v", err)
	}
	if s.Root() != "/proj" {
		t.Errorf("Root = %q, want /proj", s.Root())
	}
	units := s.Units()
	if len(units) != 1 || units[0].Path != "/proj/src/w.cpp" {
		t.Fatalf("Units = %+v", units)
	}

	forest := symbols.NewForest()
	if err := s.Parse(context.Background(), units[0], forest, forest.Root()); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []symbols.Node{
		{Type: symbols.Root, Parent: symbols.NoIndex, NextSibling: symbols.NoIndex, FirstChild: 1},
		{Type: symbols.Namespace, Location: location.New("/proj/src/w.cpp", 11), Parent: 0, NextSibling: 4, FirstChild: 2, Name: "app"},
		{Type: symbols.Class, Location: location.New("/proj/src/w.cpp", 23), Parent: 1, NextSibling: symbols.NoIndex, FirstChild: 3, Name: "Widget"},
		{Type: symbols.MethodDefinition, Location: location.New("/proj/src/w.cpp", 39), Parent: 2, NextSibling: symbols.NoIndex, FirstChild: symbols.NoIndex, Name: "run"},
		{Type: symbols.MethodDefinition, Location: location.New("/proj/src/w.cpp", 56), Parent: 0, NextSibling: symbols.NoIndex, FirstChild: 5, Name: "go"},
		{Type: symbols.Reference, Location: location.New("/proj/src/w.cpp", 68), Parent: 4, NextSibling: symbols.NoIndex, FirstChild: symbols.NoIndex, Name: "Widget"},
	}
	got := forest.Nodes()
	if len(got) != len(want) {
		t.Fatalf("got %d nodes, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("node %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSCIP_ParseUnknownUnit(t *testing.T) {
	s, err := NewSCIP(sampleIndex(), "/elsewhere")
	if err != nil {
		t.Fatal(err)
	}
	forest := symbols.NewForest()
	err = s.Parse(context.Background(), TranslationUnit{Path: "/proj/src/w.cpp"}, forest, 0)
	if !errors.Is(err, cxerrors.ErrNotFound) {
		t.Errorf("Parse error = %v, want NOT_FOUND", err)
	}
}

func TestLoadSCIP(t *testing.T) {
	data, err := proto.Marshal(sampleIndex())
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "index.scip")
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}

	f, err := New(SCIPName, Options{SCIPPath: p})
	if err != nil {
		t.Fatalf("New(scip): %v", err)
	}
	if f.Name() != SCIPName {
		t.Errorf("Name = %q", f.Name())
	}

	if _, err := LoadSCIP(filepath.Join(t.TempDir(), "missing.scip"), ""); !errors.Is(err, cxerrors.ErrIndexMissing) {
		t.Errorf("LoadSCIP(missing) error = %v, want INDEX_MISSING", err)
	}
}

func TestLineTable_UTF16(t *testing.T) {
	// "é" is two bytes but one UTF-16 unit; "𝄞" is four bytes and two units.
	lt := newLineTable([]byte("é𝄞x\n"), scippb.PositionEncoding_UTF16CodeUnitOffsetFromLineStart)
	if off, ok := lt.offset(0, 3); !ok || off != 6 {
		t.Errorf("offset(0,3) = %d, %v, want 6", off, ok)
	}
	if _, ok := lt.offset(4, 0); ok {
		t.Error("offset past last line should fail")
	}
}
