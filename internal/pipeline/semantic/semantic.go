// Package semantic runs an optional LLM-based semantic-duplicate pass
// after fingerprint deduplication and before consensus, for findings that
// fingerprint dedup didn't catch because they describe the same issue in
// different words.
package semantic

import (
	"context"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/usecase/dedup"
)

// Config bounds how aggressively the semantic pass runs.
type Config struct {
	LineThreshold int
	MaxCandidates int
}

// DefaultConfig mirrors the teacher's defaults for this pass.
func DefaultConfig() Config {
	return Config{LineThreshold: 10, MaxCandidates: 50}
}

// Run compares newFindings against existing (previously posted) findings
// using comparer. Candidates are limited to Config.MaxCandidates and
// restricted to findings within Config.LineThreshold lines of an existing
// one in the same file (dedup.FindCandidates); anything past the limit,
// or anything the comparer call fails on, is treated as unique — this
// pass fails open, it never silently drops a finding it couldn't verify.
func Run(ctx context.Context, comparer dedup.SemanticComparer, newFindings []domain.Finding, existing []dedup.ExistingFinding, cfg Config) []domain.Finding {
	candidates, overflow := dedup.FindCandidates(newFindings, existing, cfg.LineThreshold, cfg.MaxCandidates)
	unpairedByCandidates := dedup.ExtractUnpairedFindings(newFindings, candidates)

	if len(candidates) == 0 {
		return newFindings
	}

	result, err := comparer.Compare(ctx, candidates)
	if err != nil || result == nil {
		// Fail open: every new finding stands as unique.
		return newFindings
	}

	kept := make([]domain.Finding, 0, len(newFindings))
	kept = append(kept, unpairedByCandidates...)
	kept = append(kept, overflow...)
	kept = append(kept, result.Unique...)
	return kept
}
