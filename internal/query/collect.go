package query

import (
	cxerrors "cxref/internal/errors"
	"cxref/internal/symbols"
)

// Collect returns start and its descendants whose type intersects mask, in
// depth-first order. depth bounds how many levels below start are searched:
// negative means unlimited and zero checks start alone.
func Collect(t symbols.Tree, start symbols.Index, mask symbols.NodeType, depth int) ([]symbols.Index, error) {
	if start < 0 || int(start) >= t.NodeCount() {
		return nil, cxerrors.Newf(cxerrors.OutOfRange, "node %d out of range [0,%d)", start, t.NodeCount())
	}
	var out []symbols.Index
	var typeErr error
	err := symbols.Walk(t, start, func(i symbols.Index, d int) bool {
		typ, err := nodeType(t, i)
		if err != nil {
			typeErr = err
			return false
		}
		if typ.Has(mask) {
			out = append(out, i)
		}
		return depth < 0 || d < depth
	})
	if err != nil {
		return nil, err
	}
	if typeErr != nil {
		return nil, typeErr
	}
	return out, nil
}

func nodeType(t symbols.Tree, i symbols.Index) (symbols.NodeType, error) {
	v, err := t.Field(i, "type")
	if err != nil {
		return symbols.Invalid, err
	}
	typ, ok := v.(symbols.NodeType)
	if !ok {
		return symbols.Invalid, cxerrors.Newf(cxerrors.InternalError, "node %d type field is %T", i, v)
	}
	return typ, nil
}
