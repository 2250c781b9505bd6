package main

import (
	"cxref/internal/index"
	"cxref/internal/query"
	"cxref/internal/storage"
	"cxref/internal/symbols"
)

// ResultsResponse is the output of locate, find and collect.
type ResultsResponse struct {
	Query   string         `json:"query" yaml:"query"`
	Types   string         `json:"types,omitempty" yaml:"types,omitempty"`
	Results []query.Result `json:"results" yaml:"results"`
}

// TreeResponse is the output of tree.
type TreeResponse struct {
	Root    symbols.Index  `json:"root" yaml:"root"`
	Depth   int            `json:"depth" yaml:"depth"`
	Results []query.Result `json:"results" yaml:"results"`
}

// NodeResponse is the output of node.
type NodeResponse struct {
	Node     query.Result   `json:"node" yaml:"node"`
	Children []query.Result `json:"children" yaml:"children"`
}

// StatusResponse is the output of status.
type StatusResponse struct {
	Version   string                `json:"version" yaml:"version"`
	Root      string                `json:"root" yaml:"root"`
	StorePath string                `json:"storePath" yaml:"storePath"`
	Meta      *index.IndexMeta      `json:"meta,omitempty" yaml:"meta,omitempty"`
	Freshness index.FreshnessResult `json:"freshness" yaml:"freshness"`
	Builds    []storage.Build       `json:"builds,omitempty" yaml:"builds,omitempty"`
}

// CanonicalizeResponse is the output of canonicalize.
type CanonicalizeResponse struct {
	Input string `json:"input" yaml:"input"`
	Path  string `json:"path" yaml:"path"`
}

// ContextResponse is the output of context.
type ContextResponse struct {
	Location string `json:"location" yaml:"location"`
	Context  string `json:"context" yaml:"context"`
	Display  string `json:"display" yaml:"display"`
}
