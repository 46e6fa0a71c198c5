package codegraph

import (
	"path/filepath"
	"sync"
)

// Graph is the cross-file map of definitions, imports, call edges, and
// inheritance edges built from a PR's added lines. All exported fields
// round-trip through JSON so a Graph can be cached between runs.
type Graph struct {
	mu sync.RWMutex

	Defs    map[string]Definition // symbol name -> Definition
	Imports map[string][]string   // file -> ordered import targets
	Calls   []CallEdge
	Derived []DerivedEdge
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		Defs:    make(map[string]Definition),
		Imports: make(map[string][]string),
	}
}

// AddFile records the definitions, imports, call edges, and derived-class
// edges extracted from a single file, without touching any other file's
// entries. Callers performing a full rebuild should call RemoveFile(file)
// first so re-adding doesn't accumulate stale definitions.
func (g *Graph) AddFile(file string, defs []Definition, imports []string, calls []CallEdge, derived []DerivedEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, d := range defs {
		g.Defs[d.Name] = d
	}
	if len(imports) > 0 {
		g.Imports[file] = append([]string(nil), imports...)
	}
	g.Calls = append(g.Calls, calls...)
	g.Derived = append(g.Derived, derived...)
}

// RemoveFile drops every definition, import list, call edge, and derived
// edge whose origin is file, so a subsequent AddFile(file, ...) reflects
// only the file's current content.
func (g *Graph) RemoveFile(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, d := range g.Defs {
		if d.File == file {
			delete(g.Defs, name)
		}
	}
	delete(g.Imports, file)

	calls := g.Calls[:0]
	for _, c := range g.Calls {
		if c.CallerFile != file {
			calls = append(calls, c)
		}
	}
	g.Calls = calls

	derived := g.Derived[:0]
	for _, d := range g.Derived {
		if d.File != file {
			derived = append(derived, d)
		}
	}
	g.Derived = derived
}

// GetStats summarizes the graph's size.
func (g *Graph) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Stats{
		Definitions:  len(g.Defs),
		Files:        len(g.Imports),
		CallEdges:    len(g.Calls),
		DerivedEdges: len(g.Derived),
	}
}

// GetDependents returns every file whose import list references file's
// package (the directory file lives in).
func (g *Graph) GetDependents(file string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pkg := filepath.Dir(file)
	var dependents []string
	for f, imports := range g.Imports {
		if f == file {
			continue
		}
		for _, imp := range imports {
			if matchesPackage(imp, pkg) {
				dependents = append(dependents, f)
				break
			}
		}
	}
	return dependents
}

// matchesPackage reports whether an import path plausibly targets pkg, a
// local directory path, by suffix match (the same heuristic used for
// module-path-to-local-package resolution in Resolver).
func matchesPackage(importPath, pkg string) bool {
	if importPath == pkg {
		return true
	}
	return len(importPath) > len(pkg) &&
		importPath[len(importPath)-len(pkg)-1] == '/' &&
		importPath[len(importPath)-len(pkg):] == pkg
}

// FindCallers returns every symbol that (transitively, up to maxDepth)
// calls symbol.
func (g *Graph) FindCallers(symbol string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return bfsCallers(g.Calls, symbol, maxDepth)
}

func bfsCallers(calls []CallEdge, symbol string, maxDepth int) []string {
	seen := map[string]bool{symbol: true}
	frontier := []string{symbol}
	var result []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, callee := range frontier {
			for _, c := range calls {
				if c.CalleeName == callee && !seen[c.CallerName] {
					seen[c.CallerName] = true
					result = append(result, c.CallerName)
					next = append(next, c.CallerName)
				}
			}
		}
		frontier = next
	}
	return result
}

// FindConsumers returns every file that (transitively, up to maxDepth)
// imports module, a local package path.
func (g *Graph) FindConsumers(module string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{}
	frontier := []string{module}
	var result []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, pkg := range frontier {
			for f, imports := range g.Imports {
				if seen[f] {
					continue
				}
				for _, imp := range imports {
					if matchesPackage(imp, pkg) {
						seen[f] = true
						result = append(result, f)
						next = append(next, filepath.Dir(f))
						break
					}
				}
			}
		}
		frontier = next
	}
	return result
}

// FindDerivedClasses returns every class that (transitively, up to
// maxDepth) derives from className.
func (g *Graph) FindDerivedClasses(className string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{className: true}
	frontier := []string{className}
	var result []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, base := range frontier {
			for _, d := range g.Derived {
				if d.Base == base && !seen[d.Derived] {
					seen[d.Derived] = true
					result = append(result, d.Derived)
					next = append(next, d.Derived)
				}
			}
		}
		frontier = next
	}
	return result
}

// FindDependencies returns the local files file depends on (transitively,
// up to maxDepth), resolved by matching its imports against files already
// present in the graph.
func (g *Graph) FindDependencies(file string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{file: true}
	frontier := []string{file}
	var result []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, f := range frontier {
			for _, imp := range g.Imports[f] {
				for candidate := range g.Imports {
					if seen[candidate] {
						continue
					}
					if matchesPackage(imp, filepath.Dir(candidate)) {
						seen[candidate] = true
						result = append(result, candidate)
						next = append(next, candidate)
					}
				}
			}
		}
		frontier = next
	}
	return result
}
