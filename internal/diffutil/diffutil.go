// Package diffutil parses unified diffs and maps source-line numbers to
// added-line positions, the shared primitive every pipeline stage that
// needs to know "is this line part of the change" builds on.
package diffutil

import (
	"strconv"
	"strings"
)

// LineType classifies a single line inside a diff hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAddition
	LineDeletion
)

// Line is one line inside a Hunk.
type Line struct {
	Type     LineType
	Content  string
	NewLine  *int // nil for deletions
	Position int  // 1-indexed from the first @@ in the file's diff
}

// Hunk is a single @@ block of a unified diff.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// ParsedDiff is a parsed unified diff for a single file.
type ParsedDiff struct {
	Hunks []Hunk
}

// AddedLine is one `+` line with the line number it occupies in the new file.
type AddedLine struct {
	NewLine int
	Content string
}

// Parse parses a unified diff string (a single file's hunks, or the
// concatenation of many git-style file blocks) into a ParsedDiff.
func Parse(patch string) (ParsedDiff, error) {
	if patch == "" {
		return ParsedDiff{}, nil
	}

	lines := strings.Split(patch, "\n")
	result := ParsedDiff{}

	var currentHunk *Hunk
	position := 0
	currentNewLine := 0

	for _, line := range lines {
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "diff --git") ||
			strings.HasPrefix(line, "index ") ||
			strings.HasPrefix(line, "--- ") ||
			strings.HasPrefix(line, "+++ ") {
			continue
		}

		if strings.HasPrefix(line, "\\ ") {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			if currentHunk != nil {
				result.Hunks = append(result.Hunks, *currentHunk)
			}

			hunk, err := parseHunkHeader(line)
			if err != nil {
				continue
			}

			currentHunk = &hunk
			currentNewLine = hunk.NewStart
			continue
		}

		if currentHunk == nil {
			continue
		}

		position++
		diffLine := Line{Position: position}

		if len(line) > 0 {
			switch line[0] {
			case '+':
				diffLine.Type = LineAddition
				diffLine.Content = line[1:]
				diffLine.NewLine = intPtr(currentNewLine)
				currentNewLine++
			case '-':
				diffLine.Type = LineDeletion
				diffLine.Content = line[1:]
				diffLine.NewLine = nil
			case ' ':
				diffLine.Type = LineContext
				diffLine.Content = line[1:]
				diffLine.NewLine = intPtr(currentNewLine)
				currentNewLine++
			default:
				diffLine.Type = LineContext
				diffLine.Content = line
				diffLine.NewLine = intPtr(currentNewLine)
				currentNewLine++
			}
		}

		currentHunk.Lines = append(currentHunk.Lines, diffLine)
	}

	if currentHunk != nil {
		result.Hunks = append(result.Hunks, *currentHunk)
	}

	return result, nil
}

// FindPosition returns the diff position for a given new-side line number,
// or nil if the line falls outside the diff (context-only region, a
// deleted line, or a line outside any hunk).
func (pd ParsedDiff) FindPosition(newLineNumber int) *int {
	if newLineNumber <= 0 {
		return nil
	}

	for _, hunk := range pd.Hunks {
		for _, line := range hunk.Lines {
			if line.NewLine != nil && *line.NewLine == newLineNumber {
				return intPtr(line.Position)
			}
		}
	}

	return nil
}

// MapAddedLines returns the ordered sequence of every `+` line in patch
// together with the line number it occupies in the new file. Hunk headers
// reset the line cursor; context lines advance it; `-` lines do not.
func MapAddedLines(patch string) []AddedLine {
	parsed, err := Parse(patch)
	if err != nil {
		return nil
	}

	var added []AddedLine
	for _, hunk := range parsed.Hunks {
		for _, line := range hunk.Lines {
			if line.Type == LineAddition && line.NewLine != nil {
				added = append(added, AddedLine{NewLine: *line.NewLine, Content: line.Content})
			}
		}
	}
	return added
}

// FilterDiffByFiles returns the concatenation of per-file blocks of diff
// (each starting at its "diff --git" header) whose target path is in
// files, preserving the original order.
func FilterDiffByFiles(diff string, files []string) string {
	if diff == "" || len(files) == 0 {
		return ""
	}

	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f] = true
	}

	blocks := splitFileBlocks(diff)
	var kept []string
	for _, block := range blocks {
		path := targetPathOf(block)
		if path != "" && wanted[path] {
			kept = append(kept, block)
		}
	}
	return strings.Join(kept, "")
}

// splitFileBlocks splits a multi-file unified diff into per-file chunks,
// each beginning at its "diff --git" line and running up to (but not
// including) the next one.
func splitFileBlocks(diff string) []string {
	lines := strings.SplitAfter(diff, "\n")

	var blocks []string
	var current strings.Builder
	started := false

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") {
			if started {
				blocks = append(blocks, current.String())
				current.Reset()
			}
			started = true
		}
		if started {
			current.WriteString(line)
		}
	}
	if started && current.Len() > 0 {
		blocks = append(blocks, current.String())
	}
	return blocks
}

// targetPathOf extracts the new-file path from a file block's "+++ b/path"
// header, falling back to the "diff --git a/x b/y" header's second path.
func targetPathOf(block string) string {
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(line, "+++ ") {
			path := strings.TrimPrefix(line, "+++ ")
			path = strings.TrimPrefix(path, "b/")
			if path == "/dev/null" {
				continue
			}
			return strings.TrimSpace(path)
		}
		if strings.HasPrefix(line, "diff --git ") {
			fields := strings.Fields(line)
			if len(fields) == 4 {
				return strings.TrimPrefix(fields[3], "b/")
			}
		}
	}
	return ""
}

func parseHunkHeader(line string) (Hunk, error) {
	hunk := Hunk{}

	parts := strings.Split(line, "@@")
	if len(parts) < 2 {
		return hunk, nil
	}

	rangeInfo := strings.TrimSpace(parts[1])
	rangeParts := strings.Fields(rangeInfo)

	for _, part := range rangeParts {
		switch {
		case strings.HasPrefix(part, "-"):
			old := strings.TrimPrefix(part, "-")
			oldStart, oldLines := parseRange(old)
			hunk.OldStart = oldStart
			hunk.OldLines = oldLines
		case strings.HasPrefix(part, "+"):
			next := strings.TrimPrefix(part, "+")
			newStart, newLines := parseRange(next)
			hunk.NewStart = newStart
			hunk.NewLines = newLines
		}
	}

	return hunk, nil
}

func parseRange(s string) (start, count int) {
	if idx := strings.Index(s, ","); idx >= 0 {
		start, _ = strconv.Atoi(s[:idx])
		count, _ = strconv.Atoi(s[idx+1:])
	} else {
		start, _ = strconv.Atoi(s)
		count = 1
	}
	return
}

func intPtr(n int) *int { return &n }
