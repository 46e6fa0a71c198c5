package pipeline

import (
	"regexp"
	"strings"

	"github.com/mprcore/reviewd/internal/diffutil"
	"github.com/mprcore/reviewd/internal/domain"
)

// FilterStats summarizes what FilterFindings did to a batch of findings.
type FilterStats struct {
	Kept       int
	Filtered   int
	Downgraded int
	Reasons    map[string]int
}

// FilterResult is FilterFindings' return value.
type FilterResult struct {
	Findings []domain.Finding
	Stats    FilterStats
}

var testPathPattern = regexp.MustCompile(`__tests__|\.test\.|\.spec\.`)

var markdownPathPattern = regexp.MustCompile(`(?i)\.(md|mdx|rst|txt)$`)

var intentionalTestPattern = regexp.MustCompile(`(?i)intentional test pattern`)

var docFormattingPattern = regexp.MustCompile(`(?i)documentation formatting|markdown formatting`)

var missingMethodPattern = regexp.MustCompile(`(?i)missing method[:\s]+([A-Za-z_][A-Za-z0-9_]*)`)

// downgradeCategories are the categories demoted from critical/major to
// minor rather than dropped outright.
var downgradeCategories = map[string]bool{
	"lint":       true,
	"style":      true,
	"suggestion": true,
}

// FilterFindings applies the title/message pattern rules spec.md §4.5
// describes: drop documentation-formatting findings on markdown-like
// paths, drop "intentional test pattern" findings on test paths,
// downgrade lint/style/suggestion findings from critical/major to minor,
// drop "line number invalid" findings whose line maps to a blank or
// closing-brace line in the diff, and drop "missing method" findings
// whose named identifier actually appears in the diff's added lines.
func FilterFindings(findings []domain.Finding, patch map[string]string) FilterResult {
	stats := FilterStats{Reasons: make(map[string]int)}
	var kept []domain.Finding

	for _, f := range findings {
		text := f.Title + " " + f.Message

		if markdownPathPattern.MatchString(f.File) && docFormattingPattern.MatchString(text) {
			stats.Filtered++
			stats.Reasons["documentation formatting on markdown path"]++
			continue
		}

		if testPathPattern.MatchString(f.File) && intentionalTestPattern.MatchString(text) {
			stats.Filtered++
			stats.Reasons["intentional test pattern"]++
			continue
		}

		if strings.Contains(strings.ToLower(text), "line number invalid") {
			if lineIsBlankOrBrace(patch[f.File], f.Line) {
				stats.Filtered++
				stats.Reasons["line number invalid"]++
				continue
			}
		}

		if m := missingMethodPattern.FindStringSubmatch(text); m != nil {
			if identifierInAddedLines(patch[f.File], m[1]) {
				stats.Filtered++
				stats.Reasons["missing method"]++
				continue
			}
		}

		if downgradeCategories[strings.ToLower(f.Category)] && f.Severity != domain.SeverityMinor {
			f.Severity = domain.SeverityMinor
			stats.Downgraded++
		}

		kept = append(kept, f)
	}

	stats.Kept = len(kept)
	return FilterResult{Findings: kept, Stats: stats}
}

func lineIsBlankOrBrace(patch string, line int) bool {
	for _, added := range diffutil.MapAddedLines(patch) {
		if added.NewLine == line {
			trimmed := strings.TrimSpace(added.Content)
			return trimmed == "" || trimmed == "}" || trimmed == "{"
		}
	}
	return false
}

func identifierInAddedLines(patch, identifier string) bool {
	for _, added := range diffutil.MapAddedLines(patch) {
		if strings.Contains(added.Content, identifier) {
			return true
		}
	}
	return false
}
