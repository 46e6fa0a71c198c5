package merge

import (
	"context"

	"github.com/mprcore/reviewd/internal/domain"
)

// ProviderReview pairs a provider's name with the review it produced. The
// orchestrator runs each configured provider independently and hands the
// resulting slice to a Merger to fold into one consensus Review.
type ProviderReview struct {
	Provider string
	Review   domain.Review
}

// Service is the simple merge strategy: concatenate every provider's
// findings and drop exact duplicates by content hash.
type Service struct{}

// NewService creates a new merge service.
func NewService() *Service {
	return &Service{}
}

// Merge combines multiple provider reviews into a single review, de-duplicating
// findings whose Hash() matches.
func (s *Service) Merge(ctx context.Context, reviews []ProviderReview) domain.Review {
	seen := make(map[string]bool)
	var findings []domain.Finding
	var metrics domain.ReviewMetrics
	var runDetails []domain.ProviderRunDetail

	for _, pr := range reviews {
		for _, finding := range pr.Review.Findings {
			if finding.Provider == "" {
				finding = finding.WithProvider(pr.Provider)
			}
			h := finding.Hash()
			if seen[h] {
				continue
			}
			seen[h] = true
			findings = append(findings, finding)
		}
		metrics.CostUSD += pr.Review.Metrics.CostUSD
		metrics.InputTokens += pr.Review.Metrics.InputTokens
		metrics.OutputTokens += pr.Review.Metrics.OutputTokens
		runDetails = append(runDetails, pr.Review.RunDetails...)
	}

	merged := domain.Review{
		Findings:   findings,
		Summary:    "This is a merged review.",
		Metrics:    metrics,
		RunDetails: runDetails,
	}
	merged.Metrics = merged.BuildMetrics()
	return merged
}
