package pipeline

import "github.com/mprcore/reviewd/internal/domain"

// ConsensusConfig configures the Consensus engine's thresholds.
type ConsensusConfig struct {
	InlineMinSeverity  domain.Severity
	InlineMinAgreement int
}

// Consensus filters deduplicated findings down to the set worth surfacing
// inline: severity at or above InlineMinSeverity, and reported by at
// least InlineMinAgreement distinct providers. Findings produced by a
// local analyzer (ast/security/rules — domain.Finding.IsLocal) bypass the
// agreement threshold entirely, since one analyzer run is authoritative
// for them.
func Consensus(findings []domain.Finding, cfg ConsensusConfig) []domain.Finding {
	var kept []domain.Finding
	for _, f := range findings {
		if !f.Severity.AtLeast(cfg.InlineMinSeverity) {
			continue
		}
		if f.IsLocal() {
			kept = append(kept, f)
			continue
		}
		if len(f.Providers) >= cfg.InlineMinAgreement {
			kept = append(kept, f)
		}
	}
	return kept
}
