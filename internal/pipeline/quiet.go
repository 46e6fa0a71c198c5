package pipeline

import "github.com/mprcore/reviewd/internal/domain"

// FeedbackModel supplies a learned per-category filter-rate threshold,
// used in place of the static QuietMinConfidence when available.
type FeedbackModel interface {
	// Threshold returns the confidence cutoff for category, and whether a
	// learned threshold exists for it at all.
	Threshold(category string) (float64, bool)
}

// QuietFilter drops low-confidence findings so quiet mode only surfaces
// comments the reviewer is likely to act on.
type QuietFilter struct {
	MinConfidence float64
	Feedback      FeedbackModel
}

// Apply drops every finding whose confidence is below the effective
// threshold, unless its severity is critical (critical findings are
// never quiet-mode filtered). The effective threshold is the feedback
// model's learned rate for the finding's category when one exists,
// falling back to MinConfidence otherwise.
func (q QuietFilter) Apply(findings []domain.Finding) []domain.Finding {
	var kept []domain.Finding
	for _, f := range findings {
		if f.Severity == domain.SeverityCritical {
			kept = append(kept, f)
			continue
		}

		threshold := q.MinConfidence
		if q.Feedback != nil {
			if learned, ok := q.Feedback.Threshold(f.Category); ok {
				threshold = learned
			}
		}

		confidence := 0.0
		if f.Confidence != nil {
			confidence = *f.Confidence
		} else if f.Evidence != nil {
			confidence = f.Evidence.Confidence
		}

		if confidence >= threshold {
			kept = append(kept, f)
		}
	}
	return kept
}
