package diffutil

import (
	"strings"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// HighlightWordDiff renders a word-level diff between two code snippets
// using Myers diff (via go-diff), returning the new text with `[+...]`
// markers around inserted words and `[-...]` around removed ones. Used by
// the evidence scorer when rendering CodeSnippet.RelatedSnippets for a
// human reader; the cheap line-level diff in the cache envelope remains
// the primary comparison path.
func HighlightWordDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("[+")
			b.WriteString(d.Text)
			b.WriteString("]")
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-")
			b.WriteString(d.Text)
			b.WriteString("]")
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
