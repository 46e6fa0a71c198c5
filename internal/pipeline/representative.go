package pipeline

import (
	"sort"

	"github.com/mprcore/reviewd/internal/domain"
)

// Scoring weights shared with the intelligent merge scorer
// (internal/usecase/merge): agreement, severity, precision, evidence.
const (
	intelligentAgreementWeight = 0.4
	intelligentSeverityWeight  = 0.3
	intelligentPrecisionWeight = 0.2
	intelligentEvidenceWeight  = 0.1
)

// PrecisionLookup returns the learned precision (0-1) for a
// provider/category pair; used by IntelligentOrdering in place of a flat
// 0.5 prior when available.
type PrecisionLookup func(provider, category string) (precision float64, ok bool)

// IntelligentOrdering builds a RepresentativeStrategy that sorts a dedup
// group's candidates by the same weighted score
// (agreement/severity/precision/evidence) the intelligent merge scorer
// uses across provider reviews, applied here within a single group so the
// highest-scoring candidate is considered first by Deduplicate's
// representative rule. This only reorders candidates — it never bypasses
// the representative-selection rule itself (highest severity, union of
// providers, longest-sane suggestion still governs the final result).
func IntelligentOrdering(lookup PrecisionLookup) RepresentativeStrategy {
	return func(group []domain.Finding) []domain.Finding {
		if len(group) < 2 {
			return group
		}

		scored := make([]domain.Finding, len(group))
		copy(scored, group)

		sort.SliceStable(scored, func(i, j int) bool {
			return candidateScore(scored[i], lookup) > candidateScore(scored[j], lookup)
		})
		return scored
	}
}

func candidateScore(f domain.Finding, lookup PrecisionLookup) float64 {
	agreement := float64(len(f.Providers))
	severity := severityScore(f.Severity)
	precision := averagePrecision(f, lookup)
	evidence := 0.0
	if f.Evidence != nil {
		evidence = 1.0
	}

	return intelligentAgreementWeight*agreement +
		intelligentSeverityWeight*severity +
		intelligentPrecisionWeight*precision +
		intelligentEvidenceWeight*evidence
}

func severityScore(s domain.Severity) float64 {
	switch s {
	case domain.SeverityCritical:
		return 1.0
	case domain.SeverityMajor:
		return 0.6
	case domain.SeverityMinor:
		return 0.3
	default:
		return 0.0
	}
}

func averagePrecision(f domain.Finding, lookup PrecisionLookup) float64 {
	providers := f.ProviderSet()
	if len(providers) == 0 || lookup == nil {
		return 0.5
	}

	total := 0.0
	for _, p := range providers {
		if precision, ok := lookup(p, f.Category); ok {
			total += precision
		} else {
			total += 0.5
		}
	}
	return total / float64(len(providers))
}
