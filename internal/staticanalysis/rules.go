package staticanalysis

import (
	"regexp"
	"strings"

	"github.com/mprcore/reviewd/internal/diffutil"
	"github.com/mprcore/reviewd/internal/domain"
)

const maxLineLength = 160

var (
	todoPattern      = regexp.MustCompile(`(?i)\b(TODO|FIXME|XXX)\b`)
	debugPrintGo     = regexp.MustCompile(`\b(fmt\.Print(ln|f)?|println)\(`)
	debugPrintJS     = regexp.MustCompile(`\bconsole\.(log|debug)\(`)
	osExitPattern    = regexp.MustCompile(`\bos\.Exit\(`)
	aiPlaceholderPat = regexp.MustCompile(`(?i)as an ai language model|i cannot provide|i'm unable to|here is the (code|implementation)|todo:\s*implement`)
	testFilePattern  = regexp.MustCompile(`_test\.go$|\.test\.[jt]sx?$|\.spec\.[jt]sx?$`)
)

// ApplyRules runs the always-on pattern rules (TODO markers, leftover
// debug prints, os.Exit outside main) plus the two config-gated rules
// spec.md's toggles name: a test-coverage hint and an AI-placeholder
// detector. Every finding is tagged with the "rules" local-analyzer
// provider, the same reserved name filter.go and consensus.go already
// treat specially.
func ApplyRules(files []domain.FileChange, cfg Config) []domain.Finding {
	var findings []domain.Finding

	hasTestFile := false
	for _, f := range files {
		if testFilePattern.MatchString(f.Filename) {
			hasTestFile = true
			break
		}
	}

	for _, f := range files {
		isTest := testFilePattern.MatchString(f.Filename)
		isMain := strings.HasSuffix(f.Filename, "main.go")
		addedExported := false

		for _, added := range diffutil.MapAddedLines(f.Patch) {
			line := added.Content

			if todoPattern.MatchString(line) {
				findings = append(findings, rulesFinding(f.Filename, added.NewLine, domain.SeverityMinor,
					"unresolved TODO marker",
					"This line adds a TODO/FIXME/XXX marker.",
					"Resolve it before merging, or file a tracked issue and reference it here.",
					"rules"))
			}

			if !isTest && (debugPrintGo.MatchString(line) || debugPrintJS.MatchString(line)) {
				findings = append(findings, rulesFinding(f.Filename, added.NewLine, domain.SeverityMinor,
					"leftover debug statement",
					"This looks like a debug print statement left in non-test code.",
					"Remove it or replace it with structured logging.",
					"rules"))
			}

			if !isMain && osExitPattern.MatchString(line) {
				findings = append(findings, rulesFinding(f.Filename, added.NewLine, domain.SeverityMajor,
					"avoid os.Exit outside main",
					"Calling os.Exit outside of main/cmd code skips deferred cleanup and makes the function untestable.",
					"Return an error instead and let main decide how to terminate.",
					"rules"))
			}

			if cfg.EnableAIDetection && aiPlaceholderPat.MatchString(line) {
				findings = append(findings, rulesFinding(f.Filename, added.NewLine, domain.SeverityMajor,
					"possible AI-generated placeholder content",
					"This line reads like unedited LLM output rather than finished code.",
					"Review and rewrite this section before merging.",
					"rules"))
			}

			if len(line) > maxLineLength {
				findings = append(findings, rulesFinding(f.Filename, added.NewLine, domain.SeverityMinor,
					"line exceeds recommended length",
					"This line is longer than the recommended maximum.",
					"Wrap or restructure it for readability.",
					"rules"))
			}

			if !isTest && exportedIdentifierPattern.MatchString(line) {
				addedExported = true
			}
		}

		if cfg.EnableTestHints && addedExported && !isTest && !hasTestFile {
			findings = append(findings, rulesFinding(f.Filename, firstAddedLine(f.Patch), domain.SeverityMinor,
				"new exported code without accompanying tests",
				"This change adds exported functionality but the PR doesn't touch any test file.",
				"Add or update a _test.go (or equivalent) file covering the new behavior.",
				"rules"))
		}
	}

	return findings
}

var exportedIdentifierPattern = regexp.MustCompile(`^\s*func\s+(\([^)]*\)\s*)?[A-Z]`)

func firstAddedLine(patch string) int {
	added := diffutil.MapAddedLines(patch)
	if len(added) == 0 {
		return 1
	}
	return added[0].NewLine
}

func rulesFinding(file string, line int, sev domain.Severity, title, message, suggestion, provider string) domain.Finding {
	return domain.Finding{
		File:       file,
		Line:       line,
		Severity:   sev,
		Title:      title,
		Message:    message,
		Suggestion: suggestion,
		Category:   "rules",
	}.WithProvider(provider)
}
