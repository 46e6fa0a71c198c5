package pipeline_test

import (
	"testing"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestIntelligentOrdering_SortsByWeightedScore(t *testing.T) {
	weak := domain.Finding{File: "a.go", Line: 1, Title: "issue", Severity: domain.SeverityMinor}.WithProvider("openai")
	strong := domain.Finding{File: "a.go", Line: 1, Title: "issue", Severity: domain.SeverityCritical}
	strong.Providers = map[string]struct{}{"openai": {}, "anthropic": {}}
	strong.Evidence = &domain.EvidenceScore{Confidence: 0.9}

	ordering := pipeline.IntelligentOrdering(nil)
	ordered := ordering([]domain.Finding{weak, strong})

	assert.Len(t, ordered, 2)
	assert.Equal(t, domain.SeverityCritical, ordered[0].Severity)
}

func TestIntelligentOrdering_UsesPrecisionLookup(t *testing.T) {
	a := domain.Finding{File: "a.go", Line: 1, Title: "issue", Severity: domain.SeverityMajor, Category: "security"}.WithProvider("openai")
	b := domain.Finding{File: "a.go", Line: 1, Title: "issue", Severity: domain.SeverityMajor, Category: "security"}.WithProvider("anthropic")

	lookup := func(provider, category string) (float64, bool) {
		if provider == "anthropic" {
			return 0.95, true
		}
		return 0.1, true
	}

	ordering := pipeline.IntelligentOrdering(lookup)
	ordered := ordering([]domain.Finding{a, b})

	assert.Len(t, ordered, 2)
	assert.Equal(t, "anthropic", ordered[0].Provider)
}

func TestIntelligentOrdering_SingleElementGroupUnchanged(t *testing.T) {
	only := domain.Finding{File: "a.go", Line: 1, Title: "issue"}

	ordering := pipeline.IntelligentOrdering(nil)
	ordered := ordering([]domain.Finding{only})

	assert.Len(t, ordered, 1)
	assert.Equal(t, only, ordered[0])
}
