package codegraph

import (
	"path/filepath"
	"strings"

	"github.com/mprcore/reviewd/internal/codegraph/parse"
)

// Resolver reconciles cross-file/cross-package calls left unresolved by
// an Extractor, a two-phase design (parse pass already ran and populated
// Graph.Defs/Graph.Imports; this is the resolve pass). It reconciles each
// unresolved call's import alias to an exported symbol, falling back to
// the graph's global, package-agnostic symbol index for same-package
// calls across files that need no import at all.
type Resolver struct{}

// NewResolver returns a Resolver. It carries no state of its own; all
// lookups run directly against the Graph passed to Resolve.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve turns file's unresolved calls into CallEdge values it can, by
// looking up the callee (qualified or bare) against g's global symbol
// table. Calls that still can't be resolved are dropped silently — an
// unresolved call is evidence the extractor saw a reference, not proof a
// definition exists in a PR's added lines, so this never blocks a build.
func (r *Resolver) Resolve(g *Graph, file string, unresolved []parse.UnresolvedCall) []CallEdge {
	var edges []CallEdge

	imports := g.Imports[file]

	for _, uc := range unresolved {
		calleeName := uc.CalleeName
		if !strings.Contains(calleeName, ".") {
			if def, ok := g.Defs[calleeName]; ok {
				edges = append(edges, CallEdge{CallerFile: file, CallerName: uc.CallerName, CalleeName: def.Name})
			}
			continue
		}

		parts := strings.SplitN(calleeName, ".", 2)
		prefix, method := parts[0], parts[1]

		if def, ok := g.Defs[method]; ok && def.Exported && importAliasMatches(imports, prefix) {
			edges = append(edges, CallEdge{CallerFile: file, CallerName: uc.CallerName, CalleeName: method})
			continue
		}

		// obj.Method() where obj isn't an import alias: treat method as a
		// same-package call if a matching exported definition exists.
		if def, ok := g.Defs[method]; ok && def.Exported {
			edges = append(edges, CallEdge{CallerFile: file, CallerName: uc.CallerName, CalleeName: method})
		}
	}

	return edges
}

// importAliasMatches reports whether prefix plausibly refers to one of
// file's imports, matching either the import path's final path component
// (the Go compiler's default package name) or an exact match.
func importAliasMatches(imports []string, prefix string) bool {
	for _, imp := range imports {
		if imp == prefix || filepath.Base(imp) == prefix {
			return true
		}
	}
	return false
}
