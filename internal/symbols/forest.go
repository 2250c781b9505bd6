// Package symbols holds the in-memory symbol forest that front-ends build and
// the store serializes.
package symbols

import (
	"strings"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/paths"
)

// Index addresses a node in a Forest or a Store. NoIndex means "none".
type Index int32

// NoIndex marks an absent parent, sibling or child.
const NoIndex Index = -1

// Valid reports whether i refers to a node slot at all.
func (i Index) Valid() bool {
	return i >= 0
}

// Node is one symbol record.
type Node struct {
	Type        NodeType          `json:"type" yaml:"type"`
	Location    location.Location `json:"location" yaml:"location"`
	Parent      Index             `json:"parent" yaml:"parent"`
	NextSibling Index             `json:"nextSibling" yaml:"nextSibling"`
	FirstChild  Index             `json:"firstChild" yaml:"firstChild"`
	Name        string            `json:"name" yaml:"name"`
}

// Forest is an arena of nodes linked by index. Node 0 is always a Root node;
// further Root nodes are chained to it as siblings.
type Forest struct {
	nodes     []Node
	lastChild []Index
	lastRoot  Index
}

// NewForest returns a forest holding a single unnamed Root node.
func NewForest() *Forest {
	f := &Forest{}
	f.nodes = append(f.nodes, Node{Type: Root, Parent: NoIndex, NextSibling: NoIndex, FirstChild: NoIndex})
	f.lastChild = append(f.lastChild, NoIndex)
	f.lastRoot = 0
	return f
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Root returns the index of the first tree's root.
func (f *Forest) Root() Index {
	return 0
}

// Add appends a node under parent and returns its index. Children keep their
// insertion order. A Root-typed node must be added with parent NoIndex and
// starts a new tree; every other node needs a parent.
func (f *Forest) Add(parent Index, typ NodeType, loc location.Location, name string) (Index, error) {
	if err := checkLocation(loc); err != nil {
		return NoIndex, err
	}
	isRoot := typ.Has(Root)
	switch {
	case isRoot && parent != NoIndex:
		return NoIndex, cxerrors.Newf(cxerrors.PreconditionViolation, "root node %q cannot have a parent", name)
	case !isRoot && parent == NoIndex:
		return NoIndex, cxerrors.Newf(cxerrors.PreconditionViolation, "node %q needs a parent", name)
	case !isRoot && !f.inRange(parent):
		return NoIndex, cxerrors.Newf(cxerrors.OutOfRange, "parent index %d out of range [0,%d)", parent, len(f.nodes))
	}
	if len(f.nodes) >= 1<<31-1 {
		return NoIndex, cxerrors.Newf(cxerrors.InternalError, "forest is full")
	}

	idx := Index(len(f.nodes))
	f.nodes = append(f.nodes, Node{
		Type:        typ,
		Location:    loc,
		Parent:      parent,
		NextSibling: NoIndex,
		FirstChild:  NoIndex,
		Name:        name,
	})
	f.lastChild = append(f.lastChild, NoIndex)

	if isRoot {
		f.nodes[f.lastRoot].NextSibling = idx
		f.lastRoot = idx
		return idx, nil
	}
	if last := f.lastChild[parent]; last == NoIndex {
		f.nodes[parent].FirstChild = idx
	} else {
		f.nodes[last].NextSibling = idx
	}
	f.lastChild[parent] = idx
	return idx, nil
}

// Node returns the node at i.
func (f *Forest) Node(i Index) (Node, error) {
	if !f.inRange(i) {
		return Node{}, cxerrors.Newf(cxerrors.OutOfRange, "node index %d out of range [0,%d)", i, len(f.nodes))
	}
	return f.nodes[i], nil
}

// Nodes returns a copy of the node table.
func (f *Forest) Nodes() []Node {
	out := make([]Node, len(f.nodes))
	copy(out, f.nodes)
	return out
}

// SetName renames node i.
func (f *Forest) SetName(i Index, name string) error {
	if !f.inRange(i) {
		return cxerrors.Newf(cxerrors.OutOfRange, "node index %d out of range [0,%d)", i, len(f.nodes))
	}
	f.nodes[i].Name = name
	return nil
}

func (f *Forest) inRange(i Index) bool {
	return i >= 0 && int(i) < len(f.nodes)
}

// FromNodes adopts a prebuilt node table after validating it.
func FromNodes(nodes []Node) (*Forest, error) {
	f := &Forest{nodes: nodes}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.lastChild = make([]Index, len(nodes))
	for i := range nodes {
		c := nodes[i].FirstChild
		for c != NoIndex && nodes[c].NextSibling != NoIndex {
			c = nodes[c].NextSibling
		}
		f.lastChild[i] = c
	}
	r := Index(0)
	for nodes[r].NextSibling != NoIndex {
		r = nodes[r].NextSibling
	}
	f.lastRoot = r
	return f, nil
}

// Validate checks the structural invariants the store relies on: node 0 is a
// Root, every link is in range, parents agree with child lists, no node is
// reachable twice (no cycles) and every non-null location is absolute and
// canonical.
func (f *Forest) Validate() error {
	n := len(f.nodes)
	if n == 0 {
		return cxerrors.Newf(cxerrors.PreconditionViolation, "forest has no root")
	}
	if !f.nodes[0].Type.Has(Root) {
		return cxerrors.Newf(cxerrors.PreconditionViolation, "node 0 is %s, want Root", f.nodes[0].Type)
	}
	link := func(i int, what string, v Index) error {
		if v != NoIndex && !f.inRange(v) {
			return cxerrors.Newf(cxerrors.OutOfRange, "node %d %s %d out of range [0,%d)", i, what, v, n)
		}
		return nil
	}
	for i, node := range f.nodes {
		if err := link(i, "parent", node.Parent); err != nil {
			return err
		}
		if err := link(i, "nextSibling", node.NextSibling); err != nil {
			return err
		}
		if err := link(i, "firstChild", node.FirstChild); err != nil {
			return err
		}
		if node.Type.Has(Root) && node.Parent != NoIndex {
			return cxerrors.Newf(cxerrors.PreconditionViolation, "root node %d has parent %d", i, node.Parent)
		}
		if !node.Type.Has(Root) && node.Parent == NoIndex {
			return cxerrors.Newf(cxerrors.PreconditionViolation, "node %d has no parent", i)
		}
		if err := checkLocation(node.Location); err != nil {
			return err
		}
		for j := 0; j < len(node.Name); j++ {
			if node.Name[j] == 0 {
				return cxerrors.Newf(cxerrors.PreconditionViolation, "node %d name contains NUL", i)
			}
		}
	}

	// Every node must be reached exactly once walking roots, children and siblings.
	seen := make([]bool, n)
	stack := []Index{0}
	visited := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for c := i; c != NoIndex; c = f.nodes[c].NextSibling {
			if seen[c] {
				return cxerrors.Newf(cxerrors.PreconditionViolation, "node %d reached twice (cycle or shared child)", c)
			}
			seen[c] = true
			visited++
			if f.nodes[c].Parent != f.nodes[i].Parent {
				return cxerrors.Newf(cxerrors.PreconditionViolation, "sibling %d has parent %d, want %d", c, f.nodes[c].Parent, f.nodes[i].Parent)
			}
			if fc := f.nodes[c].FirstChild; fc != NoIndex {
				if f.nodes[fc].Parent != c {
					return cxerrors.Newf(cxerrors.PreconditionViolation, "child %d has parent %d, want %d", fc, f.nodes[fc].Parent, c)
				}
				stack = append(stack, fc)
			}
		}
	}
	if visited != n {
		return cxerrors.Newf(cxerrors.PreconditionViolation, "%d of %d nodes unreachable from the root", n-visited, n)
	}
	return nil
}

func checkLocation(loc location.Location) error {
	if loc.IsNull() {
		return nil
	}
	if strings.IndexByte(loc.Path, 0) >= 0 {
		return cxerrors.Newf(cxerrors.PreconditionViolation, "location path %q contains NUL", loc.Path)
	}
	canon, err := paths.Canonicalize(loc.Path)
	if err != nil {
		return err
	}
	if canon != loc.Path {
		return cxerrors.Newf(cxerrors.PreconditionViolation, "location path %q is not canonical (want %q)", loc.Path, canon)
	}
	return nil
}
