package codegraph_test

import (
	"testing"

	"github.com/mprcore/reviewd/internal/codegraph"
	"github.com/mprcore/reviewd/internal/codegraph/parse"
	"github.com/stretchr/testify/assert"
)

func TestResolver_ResolvesBareNameAcrossFiles(t *testing.T) {
	g := codegraph.New()
	g.AddFile("b.go", []codegraph.Definition{{Name: "Helper", Kind: codegraph.DefFunction, File: "b.go", Exported: true}}, nil, nil, nil)
	g.AddFile("a.go", nil, nil, nil, nil)

	r := codegraph.NewResolver()
	edges := r.Resolve(g, "a.go", []parse.UnresolvedCall{{CallerName: "Caller", CalleeName: "Helper"}})

	assert.Len(t, edges, 1)
	assert.Equal(t, "Helper", edges[0].CalleeName)
	assert.Equal(t, "a.go", edges[0].CallerFile)
}

func TestResolver_ResolvesQualifiedCallViaImportAlias(t *testing.T) {
	g := codegraph.New()
	g.AddFile("pkg/util/util.go", []codegraph.Definition{{Name: "Do", Kind: codegraph.DefFunction, File: "pkg/util/util.go", Exported: true}}, nil, nil, nil)
	g.AddFile("a.go", nil, []string{"pkg/util"}, nil, nil)

	r := codegraph.NewResolver()
	edges := r.Resolve(g, "a.go", []parse.UnresolvedCall{{CallerName: "Caller", CalleeName: "util.Do"}})

	assert.Len(t, edges, 1)
	assert.Equal(t, "Do", edges[0].CalleeName)
}

func TestResolver_DropsUnresolvableCall(t *testing.T) {
	g := codegraph.New()
	g.AddFile("a.go", nil, nil, nil, nil)

	r := codegraph.NewResolver()
	edges := r.Resolve(g, "a.go", []parse.UnresolvedCall{{CallerName: "Caller", CalleeName: "nothing.Here"}})

	assert.Empty(t, edges)
}
