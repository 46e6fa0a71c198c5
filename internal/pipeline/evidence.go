package pipeline

import "github.com/mprcore/reviewd/internal/domain"

// EvidenceInputs are the raw signals feeding the evidence scorer for one
// finding.
type EvidenceInputs struct {
	ProviderCount   int  // providers participating in this run
	ASTConfirmed    bool
	GraphConfirmed  bool
	DirectEvidence  bool // the finding's line appears in the added-lines set
}

// ScoreEvidence computes a finding's confidence, reasoning, and badge.
// Starting from a base of 0.5: +0.15*providerAgreement (this finding's
// provider count over the run's total provider count), +0.1 each for
// ASTConfirmed, GraphConfirmed, and DirectEvidence, capped at 1.0.
func ScoreEvidence(providers int, in EvidenceInputs) domain.EvidenceScore {
	agreement := 0.0
	if in.ProviderCount > 0 {
		agreement = float64(providers) / float64(in.ProviderCount)
	}

	confidence := 0.5 + 0.15*agreement
	if in.ASTConfirmed {
		confidence += 0.1
	}
	if in.GraphConfirmed {
		confidence += 0.1
	}
	if in.DirectEvidence {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return domain.EvidenceScore{
		Confidence: confidence,
		Reasoning:  reasoningFor(agreement, in),
		Badge:      badgeFor(confidence),
	}
}

func reasoningFor(agreement float64, in EvidenceInputs) string {
	reasoning := "base confidence 0.5"
	if agreement > 0 {
		reasoning += ", provider agreement boost"
	}
	if in.ASTConfirmed {
		reasoning += ", confirmed by AST analysis"
	}
	if in.GraphConfirmed {
		reasoning += ", confirmed by code graph"
	}
	if in.DirectEvidence {
		reasoning += ", line appears in added lines"
	}
	return reasoning
}

func badgeFor(confidence float64) domain.EvidenceBadge {
	switch {
	case confidence >= 0.9:
		return domain.BadgeVeryHigh
	case confidence >= 0.75:
		return domain.BadgeHigh
	case confidence >= 0.5:
		return domain.BadgeMedium
	default:
		return domain.BadgeLow
	}
}

// ScoreFinding returns a copy of f with Evidence populated via
// ScoreEvidence.
func ScoreFinding(f domain.Finding, totalProviders int, in EvidenceInputs) domain.Finding {
	in.ProviderCount = totalProviders
	score := ScoreEvidence(len(f.Providers), in)
	next := f
	next.Evidence = &score
	return next
}
