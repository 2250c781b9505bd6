package symbols

import (
	cxerrors "cxref/internal/errors"
)

// Tree is the narrow read surface over a symbol forest. Query mechanisms
// (embedded or out of process) consume this instead of store internals.
type Tree interface {
	NodeCount() int
	Children(i Index) ([]Index, error)
	Field(i Index, name string) (interface{}, error)
}

// FieldNames lists the fields Tree.Field understands.
var FieldNames = []string{"type", "typeName", "location", "parent", "nextSibling", "firstChild", "name"}

// FieldOf reads one named field of n.
func FieldOf(n Node, name string) (interface{}, error) {
	switch name {
	case "type":
		return n.Type, nil
	case "typeName":
		return n.Type.Name(Normal), nil
	case "location":
		return n.Location.Key(), nil
	case "parent":
		return n.Parent, nil
	case "nextSibling":
		return n.NextSibling, nil
	case "firstChild":
		return n.FirstChild, nil
	case "name":
		return n.Name, nil
	}
	return nil, cxerrors.Newf(cxerrors.NotFound, "unknown node field %q", name)
}

// NodeCount implements Tree.
func (f *Forest) NodeCount() int {
	return len(f.nodes)
}

// Children implements Tree.
func (f *Forest) Children(i Index) ([]Index, error) {
	n, err := f.Node(i)
	if err != nil {
		return nil, err
	}
	var out []Index
	for c := n.FirstChild; c != NoIndex; c = f.nodes[c].NextSibling {
		out = append(out, c)
	}
	return out, nil
}

// Field implements Tree.
func (f *Forest) Field(i Index, name string) (interface{}, error) {
	n, err := f.Node(i)
	if err != nil {
		return nil, err
	}
	return FieldOf(n, name)
}

// Walk visits i and its descendants depth first, children in order. fn gets
// the depth relative to i; returning false skips that node's children.
// A node reached twice means the links form a cycle and yields CORRUPT_HEADER.
func Walk(t Tree, i Index, fn func(i Index, depth int) bool) error {
	type frame struct {
		i     Index
		depth int
	}
	n := t.NodeCount()
	if int(i) < 0 || int(i) >= n {
		return cxerrors.Newf(cxerrors.OutOfRange, "node index %d out of range [0, %d)", i, n)
	}
	seen := make([]bool, n)
	stack := []frame{{i, 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int(top.i) < 0 || int(top.i) >= n {
			return cxerrors.Newf(cxerrors.CorruptHeader, "node index %d out of range [0, %d)", top.i, n)
		}
		if seen[top.i] {
			return cxerrors.Newf(cxerrors.CorruptHeader, "node %d reached twice during traversal", top.i)
		}
		seen[top.i] = true
		if !fn(top.i, top.depth) {
			continue
		}
		kids, err := t.Children(top.i)
		if err != nil {
			return err
		}
		for k := len(kids) - 1; k >= 0; k-- {
			stack = append(stack, frame{kids[k], top.depth + 1})
		}
	}
	return nil
}
