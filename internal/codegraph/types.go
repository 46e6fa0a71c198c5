// Package codegraph builds and queries a cross-file map of definitions,
// imports, call edges, and inheritance edges, derived from the added lines
// of a pull request's changed files.
package codegraph

// DefKind enumerates the kinds of symbol a Definition can describe.
type DefKind string

const (
	DefFunction  DefKind = "function"
	DefMethod    DefKind = "method"
	DefClass     DefKind = "class"
	DefInterface DefKind = "interface"
	DefVariable  DefKind = "variable"
)

// Definition is a single named symbol extracted from a file.
type Definition struct {
	Name     string
	Kind     DefKind
	File     string
	Line     int
	Exported bool
}

// CallEdge is a single caller-to-callee reference.
type CallEdge struct {
	CallerFile string
	CallerName string
	CalleeName string
}

// DerivedEdge records that Derived extends or implements Base.
type DerivedEdge struct {
	Base    string
	Derived string
	File    string
}

// Stats summarizes a Graph's size.
type Stats struct {
	Definitions int
	Files       int
	CallEdges   int
	DerivedEdges int
}
