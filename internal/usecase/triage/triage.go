// Package triage implements spec.md §4.9 steps 2 and 3: classifying
// changed files as trivial (so an all-trivial PR gets a canned,
// zero-cost review) and assigning each remaining file a review
// intensity that downstream batching and prompting consume.
package triage

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mprcore/reviewd/internal/domain"
)

// Intensity is the review depth assigned to a file.
type Intensity string

const (
	IntensityThorough Intensity = "thorough"
	IntensityStandard Intensity = "standard"
	IntensityLight    Intensity = "light"
)

// lockFilePattern matches the common package-manager lock files across
// ecosystems; these are always trivial regardless of size.
var lockFilePattern = regexp.MustCompile(`(?i)(package-lock\.json|yarn\.lock|pnpm-lock\.yaml|Gemfile\.lock|go\.sum|Cargo\.lock|poetry\.lock)$`)

var docsOnlyPattern = regexp.MustCompile(`(?i)\.(md|mdx|rst|txt|adoc)$`)

var formattingOnlyPattern = regexp.MustCompile(`(?i)\.(gitignore|editorconfig|prettierrc|eslintrc)$`)

var testFixturePattern = regexp.MustCompile(`(?i)(testdata/|fixtures/|__fixtures__/|\.snap$)`)

var configOnlyPattern = regexp.MustCompile(`(?i)\.(ya?ml|toml|ini|json)$`)

var buildArtifactPattern = regexp.MustCompile(`(?i)(dist/|build/|vendor/|node_modules/|\.min\.(js|css)$)`)

// Config toggles which built-in trivial categories apply and supplies
// additional glob patterns from project configuration.
type Config struct {
	IgnoreLockFiles     bool
	IgnoreDocsOnly      bool
	IgnoreFormattingOnly bool
	IgnoreTestFixtures  bool
	IgnoreConfigOnly    bool
	IgnoreBuildArtifacts bool
	CustomTrivialGlobs  []string
}

// IsTrivial reports whether filename matches a configured trivial
// category.
func IsTrivial(filename string, cfg Config) bool {
	if cfg.IgnoreLockFiles && lockFilePattern.MatchString(filename) {
		return true
	}
	if cfg.IgnoreDocsOnly && docsOnlyPattern.MatchString(filename) {
		return true
	}
	if cfg.IgnoreFormattingOnly && formattingOnlyPattern.MatchString(filename) {
		return true
	}
	if cfg.IgnoreTestFixtures && testFixturePattern.MatchString(filename) {
		return true
	}
	if cfg.IgnoreConfigOnly && configOnlyPattern.MatchString(filename) {
		return true
	}
	if cfg.IgnoreBuildArtifacts && buildArtifactPattern.MatchString(filename) {
		return true
	}
	for _, glob := range cfg.CustomTrivialGlobs {
		if ok, _ := filepath.Match(glob, filename); ok {
			return true
		}
	}
	return false
}

// Split partitions files into the non-trivial set to actually review and
// the trivial set set aside. When every file is trivial, allTrivial is
// true and the caller should emit a canned review instead of continuing.
func Split(files []domain.FileChange, cfg Config) (reviewable []domain.FileChange, trivial []domain.FileChange, allTrivial bool) {
	for _, f := range files {
		if IsTrivial(f.Filename, cfg) {
			trivial = append(trivial, f)
		} else {
			reviewable = append(reviewable, f)
		}
	}
	return reviewable, trivial, len(reviewable) == 0 && len(files) > 0
}

// IntensityRule is one ordered glob-to-intensity mapping; the first rule
// whose pattern matches a file wins.
type IntensityRule struct {
	Pattern   string
	Intensity Intensity
}

// Classify assigns filename an intensity by testing rules in order and
// falling back to defaultIntensity when none match.
func Classify(filename string, rules []IntensityRule, defaultIntensity Intensity) Intensity {
	for _, rule := range rules {
		if ok, _ := filepath.Match(rule.Pattern, filename); ok {
			return rule.Intensity
		}
		// filepath.Match doesn't traverse directory separators with "*",
		// so also try a substring match for directory-style patterns
		// (e.g. "internal/critical/**") the way glob-based config commonly
		// expresses "everything under this path".
		if strings.HasSuffix(rule.Pattern, "**") && strings.HasPrefix(filename, strings.TrimSuffix(rule.Pattern, "**")) {
			return rule.Intensity
		}
	}
	return defaultIntensity
}
