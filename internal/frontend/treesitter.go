//go:build cgo

package frontend

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/symbols"
)

// TreeSitter parses C and C++ sources with tree-sitter. It is not safe for
// concurrent use.
type TreeSitter struct {
	parser *sitter.Parser
}

// NewTreeSitter creates a tree-sitter front-end.
func NewTreeSitter() (*TreeSitter, error) {
	return &TreeSitter{parser: sitter.NewParser()}, nil
}

// TreeSitterAvailable reports whether the tree-sitter front-end is compiled in.
func TreeSitterAvailable() bool {
	return true
}

// Name implements Frontend.
func (t *TreeSitter) Name() string {
	return TreeSitterName
}

// Parse implements Frontend.
func (t *TreeSitter) Parse(ctx context.Context, tu TranslationUnit, forest *symbols.Forest, parent symbols.Index) error {
	path, err := checkUnit(tu)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return cxerrors.New(cxerrors.InternalError, "reading "+path, err)
	}
	return t.ParseSource(ctx, tu, source, forest, parent)
}

// ParseSource is Parse over source text already in memory.
func (t *TreeSitter) ParseSource(ctx context.Context, tu TranslationUnit, source []byte, forest *symbols.Forest, parent symbols.Index) error {
	path, err := checkUnit(tu)
	if err != nil {
		return err
	}
	lang := DetectLanguage(tu)
	switch lang {
	case LangC:
		t.parser.SetLanguage(c.GetLanguage())
	case LangCPP:
		t.parser.SetLanguage(cpp.GetLanguage())
	default:
		return cxerrors.Newf(cxerrors.PreconditionViolation, "no C or C++ language for %s", path)
	}

	tree, err := t.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return cxerrors.New(cxerrors.InternalError, fmt.Sprintf("parsing %s", path), err)
	}
	defer tree.Close()

	v := &visitor{forest: forest, path: path, source: source}
	return v.visit(tree.RootNode(), parent)
}

type visitor struct {
	forest *symbols.Forest
	path   string
	source []byte
}

func (v *visitor) add(parent symbols.Index, typ symbols.NodeType, at *sitter.Node, name string) (symbols.Index, error) {
	return v.forest.Add(parent, typ, location.New(v.path, at.StartByte()+1), name)
}

func (v *visitor) visit(n *sitter.Node, parent symbols.Index) error {
	next := parent
	switch n.Type() {
	case "namespace_definition":
		// Anonymous namespaces keep an empty name and sit at the keyword.
		at, name := n, ""
		if id := n.ChildByFieldName("name"); id != nil {
			at, name = id, id.Content(v.source)
		}
		idx, err := v.add(parent, symbols.Namespace, at, name)
		if err != nil {
			return err
		}
		next = idx

	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		id := n.ChildByFieldName("name")
		body := n.ChildByFieldName("body")
		if id != nil && body != nil {
			idx, err := v.add(parent, specifierType(n.Type()), id, id.Content(v.source))
			if err != nil {
				return err
			}
			next = idx
		}

	case "enumerator":
		if id := n.ChildByFieldName("name"); id != nil {
			if _, err := v.add(parent, symbols.EnumValue, id, id.Content(v.source)); err != nil {
				return err
			}
		}

	case "function_definition":
		if id := declaratorName(n.ChildByFieldName("declarator")); id != nil {
			idx, err := v.add(parent, symbols.MethodDefinition, id, id.Content(v.source))
			if err != nil {
				return err
			}
			next = idx
		}

	case "declaration", "field_declaration":
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.FieldNameForChild(i) != "declarator" {
				continue
			}
			d := n.Child(i)
			id := declaratorName(d)
			if id == nil {
				continue
			}
			typ := symbols.Variable
			if isFunctionDeclarator(d) {
				typ = symbols.MethodDeclaration
			}
			if _, err := v.add(parent, typ, id, id.Content(v.source)); err != nil {
				return err
			}
		}

	case "type_definition":
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.FieldNameForChild(i) != "declarator" {
				continue
			}
			if id := declaratorName(n.Child(i)); id != nil {
				if _, err := v.add(parent, symbols.Typedef, id, id.Content(v.source)); err != nil {
					return err
				}
			}
		}

	case "alias_declaration":
		if id := n.ChildByFieldName("name"); id != nil {
			if _, err := v.add(parent, symbols.Typedef, id, id.Content(v.source)); err != nil {
				return err
			}
		}

	case "preproc_def", "preproc_function_def":
		if id := n.ChildByFieldName("name"); id != nil {
			if _, err := v.add(parent, symbols.MacroDefinition, id, id.Content(v.source)); err != nil {
				return err
			}
		}

	case "call_expression":
		if id := calleeName(n.ChildByFieldName("function")); id != nil {
			if _, err := v.add(parent, symbols.Reference, id, id.Content(v.source)); err != nil {
				return err
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if err := v.visit(child, next); err != nil {
			return err
		}
	}
	return nil
}

func specifierType(nodeType string) symbols.NodeType {
	switch nodeType {
	case "class_specifier":
		return symbols.Class
	case "enum_specifier":
		return symbols.Enum
	}
	return symbols.Struct
}

// declaratorName follows the declarator chain down to the declared name.
func declaratorName(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier",
			"destructor_name", "operator_name":
			return n
		}
		n = n.ChildByFieldName("declarator")
	}
	return nil
}

func isFunctionDeclarator(n *sitter.Node) bool {
	for n != nil {
		if n.Type() == "function_declarator" {
			return true
		}
		n = n.ChildByFieldName("declarator")
	}
	return false
}

// calleeName returns the node naming the called function, if it has one.
func calleeName(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "qualified_identifier":
		return n
	case "field_expression":
		return n.ChildByFieldName("field")
	case "template_function":
		return n.ChildByFieldName("name")
	}
	return nil
}
