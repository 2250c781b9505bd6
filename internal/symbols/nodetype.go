package symbols

import (
	"strings"
)

// NodeType classifies a node's symbol kind. Values are bits so a query can ask
// for several kinds at once.
type NodeType uint32

const (
	Invalid           NodeType = 0x000000
	Root              NodeType = 0x000001
	Namespace         NodeType = 0x000002
	Class             NodeType = 0x000004
	Struct            NodeType = 0x000008
	MethodDefinition  NodeType = 0x000010
	MethodDeclaration NodeType = 0x000020
	Variable          NodeType = 0x000040
	Enum              NodeType = 0x000080
	EnumValue         NodeType = 0x000100
	Typedef           NodeType = 0x000200
	MacroDefinition   NodeType = 0x000400
	Reference         NodeType = 0x000800
	All               NodeType = 0xffffff
)

// NameMode selects how NodeType.Name renders.
type NameMode int

const (
	Normal NameMode = iota
	Abbreviated
)

type typeName struct {
	typ    NodeType
	normal string
	abbrev string
}

// typeNames is the single registry of named bits; new kinds go here.
var typeNames = []typeName{
	{Root, "Root", "rt"},
	{Namespace, "Namespace", "ns"},
	{Class, "Class", "cl"},
	{Struct, "Struct", "st"},
	{MethodDefinition, "MethodDefinition", "md"},
	{MethodDeclaration, "MethodDeclaration", "mdcl"},
	{Variable, "Variable", "var"},
	{Enum, "Enum", "en"},
	{EnumValue, "EnumValue", "ev"},
	{Typedef, "Typedef", "td"},
	{MacroDefinition, "MacroDefinition", "mac"},
	{Reference, "Reference", "ref"},
}

// Name renders t. Masks with several bits join their names with '|'; All and
// Invalid have names of their own.
func (t NodeType) Name(mode NameMode) string {
	switch t {
	case Invalid:
		return pick(mode, "Invalid", "inv")
	case All:
		return pick(mode, "All", "all")
	}
	var parts []string
	for _, tn := range typeNames {
		if t&tn.typ != 0 {
			parts = append(parts, pick(mode, tn.normal, tn.abbrev))
		}
	}
	if len(parts) == 0 {
		return pick(mode, "Invalid", "inv")
	}
	return strings.Join(parts, "|")
}

func (t NodeType) String() string {
	return t.Name(Normal)
}

// Has reports whether any bit of mask is set in t.
func (t NodeType) Has(mask NodeType) bool {
	return t&mask != 0
}

func pick(mode NameMode, normal, abbrev string) string {
	if mode == Abbreviated {
		return abbrev
	}
	return normal
}

// ParseNodeType parses a name in either rendering, case-insensitively. Lists
// separated by '|' or ',' are OR-ed together. Any unknown element yields Invalid.
func ParseNodeType(s string) NodeType {
	var t NodeType
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimSpace(part)
		one := parseOne(part)
		if one == Invalid {
			return Invalid
		}
		t |= one
	}
	return t
}

func parseOne(s string) NodeType {
	if strings.EqualFold(s, "all") {
		return All
	}
	for _, tn := range typeNames {
		if strings.EqualFold(s, tn.normal) || strings.EqualFold(s, tn.abbrev) {
			return tn.typ
		}
	}
	return Invalid
}

// KnownTypes returns the named bits in registry order.
func KnownTypes() []NodeType {
	out := make([]NodeType, len(typeNames))
	for i, tn := range typeNames {
		out[i] = tn.typ
	}
	return out
}
