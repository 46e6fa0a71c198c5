package parse_test

import (
	"testing"

	"github.com/mprcore/reviewd/internal/codegraph/parse"
	"github.com/stretchr/testify/assert"
)

func TestRegexExtractor_ExtractsFunctionsAndTypes(t *testing.T) {
	snippet := "func DoThing() error {\n" +
		"\treturn inner()\n" +
		"}\n" +
		"type Handler struct {}\n"

	ext, err := parse.RegexExtractor{}.Extract("a.go", snippet)

	assert.NoError(t, err)
	var names []string
	for _, d := range ext.Defs {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "DoThing")
	assert.Contains(t, names, "Handler")
}

func TestRegexExtractor_UnresolvedCallWhenCalleeUnknown(t *testing.T) {
	snippet := "func DoThing() error {\n" +
		"\treturn unknownHelper()\n" +
		"}\n"

	ext, err := parse.RegexExtractor{}.Extract("a.go", snippet)

	assert.NoError(t, err)
	assert.Empty(t, ext.Calls)
	assert.NotEmpty(t, ext.Unresolved)
	assert.Equal(t, "unknownHelper", ext.Unresolved[0].CalleeName)
}

func TestDispatchExtractor_GoFileUsesTreeSitter(t *testing.T) {
	e := parse.DispatchExtractor("main.go")
	assert.IsType(t, parse.GoTreeSitterExtractor{}, e)
}

func TestDispatchExtractor_OtherFileUsesRegex(t *testing.T) {
	e := parse.DispatchExtractor("main.py")
	assert.IsType(t, parse.RegexExtractor{}, e)
}
