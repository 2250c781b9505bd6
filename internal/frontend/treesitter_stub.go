//go:build !cgo

package frontend

import (
	"context"

	cxerrors "cxref/internal/errors"
	"cxref/internal/symbols"
)

// TreeSitter is unavailable without cgo.
type TreeSitter struct{}

// NewTreeSitter reports that tree-sitter is not compiled in.
func NewTreeSitter() (*TreeSitter, error) {
	return nil, cxerrors.New(cxerrors.Unavailable, "tree-sitter front-end needs a cgo build", nil)
}

// TreeSitterAvailable reports whether the tree-sitter front-end is compiled in.
func TreeSitterAvailable() bool {
	return false
}

// Name implements Frontend.
func (t *TreeSitter) Name() string {
	return TreeSitterName
}

// Parse implements Frontend.
func (t *TreeSitter) Parse(ctx context.Context, tu TranslationUnit, forest *symbols.Forest, parent symbols.Index) error {
	return cxerrors.New(cxerrors.Unavailable, "tree-sitter front-end needs a cgo build", nil)
}

// ParseSource is Parse over source text already in memory.
func (t *TreeSitter) ParseSource(ctx context.Context, tu TranslationUnit, source []byte, forest *symbols.Forest, parent symbols.Index) error {
	return t.Parse(ctx, tu, forest, parent)
}
