// Package query answers location, name and index lookups over an opened
// store and renders results with source context.
package query

import (
	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/logging"
	"cxref/internal/store"
	"cxref/internal/symbols"
)

// Engine runs lookups against one store. It holds no mutable state.
type Engine struct {
	st     *store.Store
	cwd    string
	logger *logging.Logger
}

// NewEngine returns an engine over st. Relative locations resolve against cwd.
func NewEngine(st *store.Store, cwd string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{st: st, cwd: cwd, logger: logger}
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.st
}

// Result is one node rendered for output.
type Result struct {
	Index    symbols.Index `json:"index" yaml:"index"`
	Type     string        `json:"type" yaml:"type"`
	Abbrev   string        `json:"abbrev" yaml:"abbrev"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	Location string        `json:"location,omitempty" yaml:"location,omitempty"`
	Context  string        `json:"context,omitempty" yaml:"context,omitempty"`
	Parent   symbols.Index `json:"parent" yaml:"parent"`
	Depth    int           `json:"depth,omitempty" yaml:"depth,omitempty"`
}

// Display is the "<key>\t<context>" line for r, or the key alone when the
// source line could not be read.
func (r Result) Display() string {
	if r.Context == "" {
		return r.Location
	}
	return r.Location + "\t" + r.Context
}

func (e *Engine) result(v store.NodeView, depth int) Result {
	r := Result{
		Index:  v.Index,
		Type:   v.Type.Name(symbols.Normal),
		Abbrev: v.Type.Name(symbols.Abbreviated),
		Name:   v.Name,
		Parent: v.Parent,
		Depth:  depth,
	}
	if !v.Location.IsNull() {
		r.Location = v.Location.Key()
		r.Context = location.Context(v.Location.Path, v.Location.Offset)
	}
	return r
}

// Locate finds the node at "<path>,<offset>". Relative paths resolve against
// the engine's working directory.
func (e *Engine) Locate(arg string) (*Result, error) {
	loc, err := location.Resolve(arg, e.cwd)
	if err != nil {
		return nil, err
	}
	i, ok, err := e.st.FindByLocation(loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cxerrors.Newf(cxerrors.NotFound, "no symbol at %s", loc.Key())
	}
	v, err := e.st.Node(i)
	if err != nil {
		return nil, err
	}
	r := e.result(v, 0)
	return &r, nil
}

// Find returns the nodes named name whose type intersects types, in index
// order. An empty result is not an error.
func (e *Engine) Find(name string, types symbols.NodeType) ([]Result, error) {
	indices, err := e.st.FindByName(name)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(indices))
	for _, i := range indices {
		v, err := e.st.Node(i)
		if err != nil {
			return nil, err
		}
		if !v.Type.Has(types) {
			continue
		}
		out = append(out, e.result(v, 0))
	}
	e.logger.Debug("find", map[string]interface{}{
		"name":    name,
		"matches": len(out),
	})
	return out, nil
}

// Node returns the node at index i.
func (e *Engine) Node(i symbols.Index) (*Result, error) {
	v, err := e.st.Node(i)
	if err != nil {
		return nil, err
	}
	r := e.result(v, 0)
	return &r, nil
}

// Children returns the direct children of i.
func (e *Engine) Children(i symbols.Index) ([]Result, error) {
	kids, err := e.st.Children(i)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(kids))
	for _, k := range kids {
		v, err := e.st.Node(k)
		if err != nil {
			return nil, err
		}
		out = append(out, e.result(v, 1))
	}
	return out, nil
}

// Subtree lists start and its descendants in depth-first order, down to
// maxDepth levels below start (negative means unlimited). Nodes whose type
// misses types are left out but their children are still visited.
func (e *Engine) Subtree(start symbols.Index, maxDepth int, types symbols.NodeType) ([]Result, error) {
	if _, err := e.st.Node(start); err != nil {
		return nil, err
	}
	var out []Result
	var visitErr error
	err := symbols.Walk(e.st, start, func(i symbols.Index, depth int) bool {
		v, err := e.st.Node(i)
		if err != nil {
			visitErr = err
			return false
		}
		if v.Type.Has(types) {
			out = append(out, e.result(v, depth))
		}
		return maxDepth < 0 || depth < maxDepth
	})
	if err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return out, nil
}

// Names lists every dictionary name, sorted.
func (e *Engine) Names() ([]string, error) {
	return e.st.Names()
}
