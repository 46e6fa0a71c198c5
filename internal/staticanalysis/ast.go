package staticanalysis

import (
	"strings"

	"github.com/mprcore/reviewd/internal/codegraph/parse"
	"github.com/mprcore/reviewd/internal/diffutil"
	"github.com/mprcore/reviewd/internal/domain"
)

// maxNestingDepth is the leading-tab depth (or 4-space equivalent) above
// which AnalyzeAST flags a line as deeply nested. Four levels of
// if/for/switch inside one function is the point readability usually
// suffers; this is a heuristic, not a cyclomatic-complexity count.
const maxNestingDepth = 4

var exportedKinds = map[parse.DefKind]bool{
	parse.DefFunction:  true,
	parse.DefMethod:    true,
	parse.DefClass:     true,
	parse.DefInterface: true,
}

// AnalyzeAST runs the tree-sitter (or regex-fallback) extractor over each
// file's added lines and reports two pattern-based findings: exported
// declarations added without a doc comment, and lines nested deeper than
// maxNestingDepth. It reuses internal/codegraph/parse rather than a
// separate parser, since both need the same definition-extraction pass.
func AnalyzeAST(files []domain.FileChange) []domain.Finding {
	var findings []domain.Finding

	for _, f := range files {
		snippet, lineMap := snippetAndLineMap(f.Patch)
		if snippet == "" {
			continue
		}

		extractor := parse.DispatchExtractor(f.Filename)
		extraction, err := extractor.Extract(f.Filename, snippet)
		if err != nil {
			extraction, err = parse.RegexExtractor{}.Extract(f.Filename, snippet)
			if err != nil {
				continue
			}
		}

		snippetLines := strings.Split(snippet, "\n")

		for _, def := range extraction.Defs {
			if !def.Exported || !exportedKinds[def.Kind] {
				continue
			}
			if hasDocCommentAbove(snippetLines, def.Line) {
				continue
			}
			findings = append(findings, domain.Finding{
				File:       f.Filename,
				Line:       mappedLine(lineMap, def.Line),
				Severity:   domain.SeverityMinor,
				Title:      "missing doc comment on exported " + string(def.Kind),
				Message:    "exported " + string(def.Kind) + " \"" + def.Name + "\" was added without a doc comment.",
				Suggestion: "Add a doc comment starting with \"" + def.Name + " \" describing its purpose.",
				Category:   "style",
			}.WithProvider("ast"))
		}

		for i, line := range snippetLines {
			if nestingDepth(line) <= maxNestingDepth {
				continue
			}
			findings = append(findings, domain.Finding{
				File:       f.Filename,
				Line:       mappedLine(lineMap, i+1),
				Severity:   domain.SeverityMinor,
				Title:      "deeply nested logic",
				Message:    "This line is nested more than the usual handful of control-flow levels, which tends to hurt readability.",
				Suggestion: "Consider extracting the inner block into a helper function or using early returns to flatten the nesting.",
				Category:   "maintainability",
			}.WithProvider("ast"))
		}
	}

	return findings
}

// hasDocCommentAbove reports whether snippetLines[defLine-2] (the line
// immediately above a 1-indexed definition line) is a "//" comment.
func hasDocCommentAbove(snippetLines []string, defLine int) bool {
	idx := defLine - 2
	if idx < 0 || idx >= len(snippetLines) {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(snippetLines[idx]), "//")
}

// nestingDepth estimates indentation depth by counting leading tabs, or
// leading groups of two spaces when the file uses spaces instead.
func nestingDepth(line string) int {
	depth := 0
	i := 0
	for i < len(line) {
		switch {
		case line[i] == '\t':
			depth++
			i++
		case i+1 < len(line) && line[i] == ' ' && line[i+1] == ' ':
			depth++
			i += 2
		default:
			return depth
		}
	}
	return depth
}

// mappedLine translates a 1-indexed snippet line number into the real
// new-file line number recorded for that position, falling back to the
// snippet-relative number if the map is somehow shorter than expected.
func mappedLine(lineMap []int, snippetLine int) int {
	idx := snippetLine - 1
	if idx >= 0 && idx < len(lineMap) {
		return lineMap[idx]
	}
	return snippetLine
}

// snippetAndLineMap joins a patch's added lines into one snippet (for
// extractors that want contiguous source) and records, for each 1-indexed
// snippet line, the line number it actually occupies in the new file.
func snippetAndLineMap(patch string) (string, []int) {
	added := diffutil.MapAddedLines(patch)
	if len(added) == 0 {
		return "", nil
	}
	lines := make([]string, len(added))
	lineMap := make([]int, len(added))
	for i, a := range added {
		lines[i] = a.Content
		lineMap[i] = a.NewLine
	}
	return strings.Join(lines, "\n"), lineMap
}
