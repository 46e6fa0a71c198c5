// Package static implements a no-network executor.Provider for tests and
// offline demos: it returns a fixed review instead of calling an LLM.
package static

import (
	"context"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/executor"
)

const providerName = "static"

// Provider always returns the same canned review. Useful for wiring
// end-to-end pipelines without API keys or network access.
type Provider struct {
	model string
}

// New constructs a static Provider.
func New(model string) *Provider {
	return &Provider{model: model}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return providerName }

// HealthCheck always succeeds: there is nothing to reach.
func (p *Provider) HealthCheck(ctx context.Context) error { return nil }

// Review returns a static, pre-determined review regardless of prompt.
func (p *Provider) Review(ctx context.Context, prompt string) (executor.Response, error) {
	finding := domain.Finding{
		File:       "internal/adapter/llm/static/provider.go",
		Line:       1,
		Severity:   domain.SeverityMinor,
		Title:      "static finding",
		Message:    "this is a static finding from a mock provider",
		Suggestion: "no suggestion",
		Category:   "style",
		Provider:   providerName,
	}

	review := domain.Review{
		Summary:  "this is a static review from a mock provider",
		Findings: []domain.Finding{finding},
		Metrics: domain.ReviewMetrics{
			TotalFindings: 1,
			MinorCount:    1,
		},
	}

	return executor.Response{Review: review, Tokens: 0, PricePerToken: 0}, nil
}
