package frontend

import (
	"context"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/paths"
	"cxref/internal/symbols"
)

// SCIP imports cursors from a precomputed SCIP index. Definitions become
// typed nodes nested by their enclosing ranges; every other occurrence
// becomes a Reference under the innermost enclosing definition.
type SCIP struct {
	root  string
	docs  map[string]*scippb.Document
	infos map[string]*scippb.SymbolInformation
}

// LoadSCIP reads a SCIP index from disk. projectRoot, when set, replaces the
// root recorded in the index.
func LoadSCIP(indexPath, projectRoot string) (*SCIP, error) {
	if indexPath == "" {
		return nil, cxerrors.Newf(cxerrors.PreconditionViolation, "scip front-end needs index.scipPath")
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cxerrors.New(cxerrors.IndexMissing, "SCIP index not found at "+indexPath, err)
		}
		return nil, cxerrors.New(cxerrors.InternalError, "reading SCIP index "+indexPath, err)
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, cxerrors.New(cxerrors.InternalError, "parsing SCIP index "+indexPath, err)
	}
	return NewSCIP(&index, projectRoot)
}

// NewSCIP wraps an index already in memory.
func NewSCIP(index *scippb.Index, projectRoot string) (*SCIP, error) {
	root := projectRoot
	if root == "" && index.GetMetadata() != nil {
		root = index.GetMetadata().GetProjectRoot()
	}
	if strings.HasPrefix(root, "file:") {
		u, err := url.Parse(root)
		if err != nil {
			return nil, cxerrors.New(cxerrors.PreconditionViolation, "bad SCIP project root "+root, err)
		}
		root = u.Path
	}
	canonRoot, err := paths.Canonicalize(root)
	if err != nil {
		return nil, err
	}

	s := &SCIP{
		root:  canonRoot,
		docs:  make(map[string]*scippb.Document, len(index.GetDocuments())),
		infos: make(map[string]*scippb.SymbolInformation),
	}
	for _, info := range index.GetExternalSymbols() {
		s.infos[info.GetSymbol()] = info
	}
	for _, doc := range index.GetDocuments() {
		abs, err := paths.Canonicalize(path.Join(canonRoot, doc.GetRelativePath()))
		if err != nil {
			return nil, err
		}
		s.docs[abs] = doc
		for _, info := range doc.GetSymbols() {
			s.infos[info.GetSymbol()] = info
		}
	}
	return s, nil
}

// Name implements Frontend.
func (s *SCIP) Name() string {
	return SCIPName
}

// Root returns the canonical project root.
func (s *SCIP) Root() string {
	return s.root
}

// Units lists one translation unit per indexed document, sorted by path.
func (s *SCIP) Units() []TranslationUnit {
	out := make([]TranslationUnit, 0, len(s.docs))
	for p := range s.docs {
		out = append(out, TranslationUnit{Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

type occurrence struct {
	start int
	end   int // enclosing range end, -1 when absent
	def   bool
	occ   *scippb.Occurrence
}

type scope struct {
	node symbols.Index
	end  int
}

// Parse implements Frontend.
func (s *SCIP) Parse(ctx context.Context, tu TranslationUnit, forest *symbols.Forest, parent symbols.Index) error {
	p, err := checkUnit(tu)
	if err != nil {
		return err
	}
	doc, ok := s.docs[p]
	if !ok {
		return cxerrors.Newf(cxerrors.NotFound, "%s is not in the SCIP index", p)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := []byte(doc.GetText())
	if len(text) == 0 {
		if text, err = os.ReadFile(p); err != nil {
			return cxerrors.New(cxerrors.InternalError, "reading "+p, err)
		}
	}
	lines := newLineTable(text, doc.GetPositionEncoding())

	var occs []occurrence
	for _, o := range doc.GetOccurrences() {
		if o.GetSymbol() == "" || scippb.IsLocalSymbol(o.GetSymbol()) {
			continue
		}
		r := o.GetRange()
		if len(r) < 3 {
			continue
		}
		start, ok := lines.offset(r[0], r[1])
		if !ok {
			continue
		}
		item := occurrence{
			start: start,
			end:   -1,
			def:   o.GetSymbolRoles()&int32(scippb.SymbolRole_Definition) != 0,
			occ:   o,
		}
		if er := o.GetEnclosingRange(); item.def && len(er) >= 3 {
			endLine, endCol := er[0], er[2]
			if len(er) >= 4 {
				endLine, endCol = er[2], er[3]
			}
			if end, ok := lines.offset(endLine, endCol); ok {
				item.end = end
			}
		}
		occs = append(occs, item)
	}
	sort.SliceStable(occs, func(i, j int) bool {
		if occs[i].start != occs[j].start {
			return occs[i].start < occs[j].start
		}
		return occs[i].def && !occs[j].def
	})

	var stack []scope
	for _, item := range occs {
		for len(stack) > 0 && item.start >= stack[len(stack)-1].end {
			stack = stack[:len(stack)-1]
		}
		under := parent
		if len(stack) > 0 {
			under = stack[len(stack)-1].node
		}

		typ := symbols.Reference
		name, kind := s.describe(item.occ.GetSymbol())
		if item.def {
			typ = kind
		}
		if name == "" || typ == symbols.Invalid {
			continue
		}
		idx, err := forest.Add(under, typ, location.New(p, uint32(item.start)+1), name)
		if err != nil {
			return err
		}
		if item.def && item.end > item.start {
			stack = append(stack, scope{node: idx, end: item.end})
		}
	}
	return nil
}

// describe returns the display name and definition type of a symbol.
func (s *SCIP) describe(symbol string) (string, symbols.NodeType) {
	info := s.infos[symbol]
	name := info.GetDisplayName()
	typ := kindType(info.GetKind())
	if name != "" && typ != symbols.Invalid {
		return name, typ
	}

	parsed, err := scippb.ParseSymbol(symbol)
	if err != nil || len(parsed.GetDescriptors()) == 0 {
		return name, typ
	}
	last := parsed.GetDescriptors()[len(parsed.GetDescriptors())-1]
	if name == "" {
		name = last.GetName()
	}
	if typ == symbols.Invalid {
		typ = suffixType(last.GetSuffix())
	}
	return name, typ
}

func kindType(k scippb.SymbolInformation_Kind) symbols.NodeType {
	switch k {
	case scippb.SymbolInformation_Class, scippb.SymbolInformation_Interface:
		return symbols.Class
	case scippb.SymbolInformation_Struct, scippb.SymbolInformation_Union:
		return symbols.Struct
	case scippb.SymbolInformation_Enum:
		return symbols.Enum
	case scippb.SymbolInformation_EnumMember:
		return symbols.EnumValue
	case scippb.SymbolInformation_Function, scippb.SymbolInformation_Method,
		scippb.SymbolInformation_Constructor, scippb.SymbolInformation_StaticMethod:
		return symbols.MethodDefinition
	case scippb.SymbolInformation_AbstractMethod:
		return symbols.MethodDeclaration
	case scippb.SymbolInformation_Namespace, scippb.SymbolInformation_Module, scippb.SymbolInformation_Package:
		return symbols.Namespace
	case scippb.SymbolInformation_Variable, scippb.SymbolInformation_Field, scippb.SymbolInformation_Constant,
		scippb.SymbolInformation_StaticVariable, scippb.SymbolInformation_StaticField:
		return symbols.Variable
	case scippb.SymbolInformation_TypeAlias:
		return symbols.Typedef
	case scippb.SymbolInformation_Macro:
		return symbols.MacroDefinition
	}
	return symbols.Invalid
}

func suffixType(s scippb.Descriptor_Suffix) symbols.NodeType {
	switch s {
	case scippb.Descriptor_Namespace: // Descriptor_Package is an alias with the same value
		return symbols.Namespace
	case scippb.Descriptor_Type:
		return symbols.Class
	case scippb.Descriptor_Term:
		return symbols.Variable
	case scippb.Descriptor_Method:
		return symbols.MethodDefinition
	case scippb.Descriptor_Macro:
		return symbols.MacroDefinition
	}
	return symbols.Invalid
}

// lineTable converts SCIP line/column positions to byte offsets.
type lineTable struct {
	text   []byte
	starts []int
	enc    scippb.PositionEncoding
}

func newLineTable(text []byte, enc scippb.PositionEncoding) *lineTable {
	starts := []int{0}
	for i, b := range text {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineTable{text: text, starts: starts, enc: enc}
}

func (t *lineTable) offset(line, col int32) (int, bool) {
	if line < 0 || int(line) >= len(t.starts) || col < 0 {
		return 0, false
	}
	start := t.starts[line]
	end := len(t.text)
	if int(line)+1 < len(t.starts) {
		end = t.starts[line+1]
	}
	text := t.text[start:end]

	switch t.enc {
	case scippb.PositionEncoding_UTF16CodeUnitOffsetFromLineStart,
		scippb.PositionEncoding_UTF32CodeUnitOffsetFromLineStart:
		units := 0
		i := 0
		for i < len(text) && units < int(col) {
			r, size := utf8.DecodeRune(text[i:])
			units++
			if r >= 0x10000 && t.enc == scippb.PositionEncoding_UTF16CodeUnitOffsetFromLineStart {
				units++
			}
			i += size
		}
		return start + i, true
	}
	if int(col) > len(text) {
		return start + len(text), true
	}
	return start + int(col), true
}

var _ Frontend = (*SCIP)(nil)
