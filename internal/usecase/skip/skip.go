// Package skip decides whether a pull request should bypass review
// entirely, per spec.md §4.9 step 1.
package skip

import (
	"regexp"
	"strings"

	"github.com/mprcore/reviewd/internal/domain"
)

// skipTriggerPattern matches [skip code-review] or [skip-code-review],
// case-insensitive, anywhere in a commit message, PR title, or body.
var skipTriggerPattern = regexp.MustCompile(`(?i)\[skip[ -]code-review\]`)

// ContainsSkipTrigger reports whether text carries an explicit skip marker.
func ContainsSkipTrigger(text string) bool {
	return skipTriggerPattern.MatchString(text)
}

// Config carries every skip-gating toggle spec.md §4.9 step 1 names.
type Config struct {
	SkipDrafts      bool
	SkipBots        bool
	BotPatterns     []string
	SkipLabels      []string
	MinChangedLines int
	MaxChangedFiles int
	CommitMessages  []string
}

// botPatternMatches reports whether author matches any of patterns, each
// treated as a case-insensitive substring (the teacher's bot detection is
// this simple: a handful of literal suffixes like "[bot]", "dependabot").
func botPatternMatches(author string, patterns []string) bool {
	lower := strings.ToLower(author)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Check evaluates every skip-gating rule spec.md §4.9 step 1 lists, in
// order, returning the first matching reason. An empty reason means the
// PR should proceed to review.
func Check(pr domain.PRContext, cfg Config) (skip bool, reason string) {
	if ContainsSkipTrigger(pr.Title) {
		return true, "skip trigger in PR title"
	}
	if ContainsSkipTrigger(pr.Body) {
		return true, "skip trigger in PR description"
	}
	for _, msg := range cfg.CommitMessages {
		if ContainsSkipTrigger(msg) {
			return true, "skip trigger in commit message"
		}
	}

	if pr.Draft && cfg.SkipDrafts {
		return true, "draft pull request"
	}

	if cfg.SkipBots && botPatternMatches(pr.Author, cfg.BotPatterns) {
		return true, "author matches bot pattern"
	}

	for _, label := range cfg.SkipLabels {
		if pr.HasLabel(label) {
			return true, "label " + label + " present"
		}
	}

	if cfg.MinChangedLines > 0 && pr.TotalChangedLines() < cfg.MinChangedLines {
		return true, "fewer than minChangedLines changed"
	}

	if cfg.MaxChangedFiles > 0 && len(pr.Files) > cfg.MaxChangedFiles {
		return true, "more than maxChangedFiles changed"
	}

	return false, ""
}
