// Package pipeline runs the stages that turn raw provider/analyzer
// findings into the final Review: deduplication, consensus filtering,
// evidence scoring, quiet-mode filtering, and pattern-based finding
// filtering.
package pipeline

import "github.com/mprcore/reviewd/internal/domain"

// RepresentativeStrategy orders the candidates within a dedup group before
// the final representative-selection rule (highest severity, union of
// providers, longest-sane suggestion) is applied. The default strategy
// leaves candidates in arrival order; an alternative strategy (e.g. the
// intelligent-merge scorer) may reorder them to prefer a "better" finding
// first, but never bypasses the representative rule itself.
type RepresentativeStrategy func(group []domain.Finding) []domain.Finding

// DefaultOrdering is the identity strategy: candidates are scored purely
// by the representative-selection rule in document order.
func DefaultOrdering(group []domain.Finding) []domain.Finding { return group }

// Deduplicator groups findings by (file, line, normalized title/message
// bucket) — domain.Finding.DedupKey — and reduces each group to one
// representative finding.
type Deduplicator struct {
	Ordering RepresentativeStrategy
}

// NewDeduplicator creates a Deduplicator using the default arrival-order
// strategy. Use WithOrdering to plug in an alternative strategy.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{Ordering: DefaultOrdering}
}

// WithOrdering returns a copy of d using the given candidate-ordering
// strategy.
func (d *Deduplicator) WithOrdering(strategy RepresentativeStrategy) *Deduplicator {
	next := *d
	next.Ordering = strategy
	return next
}

// Deduplicate groups findings by DedupKey and returns one representative
// per group, in first-seen order. The representative keeps the highest
// severity among the group, the union of every provider that reported a
// finding in the group, and the longest suggestion that passes the
// suggestion sanity check (see suggestion.go) — the length of `providers`
// is preserved for the downstream consensus engine.
func (d *Deduplicator) Deduplicate(findings []domain.Finding) []domain.Finding {
	groups := make(map[string][]domain.Finding)
	var order []string

	for _, f := range findings {
		key := f.DedupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	ordering := d.Ordering
	if ordering == nil {
		ordering = DefaultOrdering
	}

	result := make([]domain.Finding, 0, len(order))
	for _, key := range order {
		result = append(result, representative(ordering(groups[key])))
	}
	return result
}

// representative reduces one dedup group to a single finding per the rule
// in Deduplicate's doc comment: base fields come from the first
// highest-severity candidate, severity is the worst across the group,
// providers is the union across the group, and suggestion is the longest
// one that passes the sanity check.
func representative(group []domain.Finding) domain.Finding {
	best := group[0]
	for _, f := range group[1:] {
		if f.Severity.AtLeast(best.Severity) {
			best = f
		}
	}

	providers := make(map[string]struct{})
	bestSuggestion := ""
	worst := group[0].Severity

	for _, f := range group {
		worst = domain.Worse(worst, f.Severity)
		for p := range f.Providers {
			providers[p] = struct{}{}
		}
		if f.Provider != "" {
			providers[f.Provider] = struct{}{}
		}
		if s, ok := SanitizeSuggestion(f.Suggestion); ok && len(s) > len(bestSuggestion) {
			bestSuggestion = s
		}
	}

	best.Severity = worst
	best.Providers = providers
	if bestSuggestion != "" {
		best.Suggestion = bestSuggestion
	}
	return best
}
