package codegraph

import (
	"strings"

	"github.com/mprcore/reviewd/internal/codegraph/parse"
	"github.com/mprcore/reviewd/internal/diffutil"
	"github.com/mprcore/reviewd/internal/domain"
)

// Builder turns a file's added lines into graph entries via a pluggable
// Extractor, falling back to the regex extractor whenever the primary
// extractor errors — building the graph must never be fatal.
type Builder struct {
	extractorFor func(filePath string) parse.Extractor
	resolver     *Resolver
}

// NewBuilder returns a Builder using parse.DispatchExtractor to pick an
// extractor per file extension.
func NewBuilder() *Builder {
	return &Builder{extractorFor: parse.DispatchExtractor, resolver: NewResolver()}
}

// UpdateGraph implements the builder algorithm spec.md describes:
// removeFile for each changed file, then re-add definitions/imports/calls
// from the new patch content, followed by a cross-file resolve pass over
// every unresolved call collected this run.
func (b *Builder) UpdateGraph(g *Graph, changedFiles []domain.FileChange) []Warning {
	var warnings []Warning
	type pending struct {
		file       string
		unresolved []parse.UnresolvedCall
	}
	var pendingCalls []pending

	for _, f := range changedFiles {
		g.RemoveFile(f.Filename)

		snippet := addedLinesSnippet(f.Patch)
		if snippet == "" {
			continue
		}

		extractor := b.extractorFor(f.Filename)
		extraction, err := extractor.Extract(f.Filename, snippet)
		if err != nil {
			warnings = append(warnings, Warning{File: f.Filename, Message: "primary extractor failed: " + err.Error()})
			extraction, err = parse.RegexExtractor{}.Extract(f.Filename, snippet)
			if err != nil {
				warnings = append(warnings, Warning{File: f.Filename, Message: "regex fallback failed: " + err.Error()})
				continue
			}
		}

		defs := make([]Definition, 0, len(extraction.Defs))
		for _, d := range extraction.Defs {
			defs = append(defs, Definition{Name: d.Name, Kind: DefKind(d.Kind), File: f.Filename, Line: d.Line, Exported: d.Exported})
		}

		calls := make([]CallEdge, 0, len(extraction.Calls))
		for _, c := range extraction.Calls {
			calls = append(calls, CallEdge{CallerFile: f.Filename, CallerName: c.CallerName, CalleeName: c.CalleeName})
		}

		derived := make([]DerivedEdge, 0, len(extraction.Derived))
		for _, d := range extraction.Derived {
			derived = append(derived, DerivedEdge{Base: d.Base, Derived: d.Derived, File: f.Filename})
		}

		g.AddFile(f.Filename, defs, extraction.Imports, calls, derived)

		if len(extraction.Unresolved) > 0 {
			pendingCalls = append(pendingCalls, pending{file: f.Filename, unresolved: extraction.Unresolved})
		}
	}

	for _, p := range pendingCalls {
		resolved := b.resolver.Resolve(g, p.file, p.unresolved)
		if len(resolved) > 0 {
			g.AddFile(p.file, nil, nil, resolved, nil)
		}
	}

	return warnings
}

// Warning is a non-fatal problem encountered while building the graph.
type Warning struct {
	File    string
	Message string
}

// addedLinesSnippet joins every `+` line of patch into a standalone
// snippet an extractor can attempt to parse. Best-effort: tree-sitter's
// grammars tolerate incomplete/invalid code, and the regex fallback
// doesn't need valid syntax at all.
func addedLinesSnippet(patch string) string {
	added := diffutil.MapAddedLines(patch)
	if len(added) == 0 {
		return ""
	}
	lines := make([]string, len(added))
	for i, a := range added {
		lines[i] = a.Content
	}
	return strings.Join(lines, "\n")
}
