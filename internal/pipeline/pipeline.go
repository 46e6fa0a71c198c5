package pipeline

import (
	"context"

	"github.com/mprcore/reviewd/internal/diffutil"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/pipeline/semantic"
	"github.com/mprcore/reviewd/internal/usecase/dedup"
)

// SemanticHook, when set on RunConfig, enables the optional LLM
// semantic-duplicate pass between fingerprint dedup and consensus
// (SPEC_FULL.md §4.5's supplement to spec.md's base pipeline). It runs
// against previously posted findings, not peers within the same run, so
// it needs its own comparer and existing-findings set rather than
// falling out of the other stages here.
type SemanticHook struct {
	Ctx      context.Context
	Comparer dedup.SemanticComparer
	Existing []dedup.ExistingFinding
	Config   semantic.Config
}

// RunConfig bundles everything Run needs to carry findings from raw
// concatenation through to the final, quiet-mode-filtered, pattern
// -filtered set spec.md §4.9 step 8 describes.
type RunConfig struct {
	Ordering       RepresentativeStrategy // nil uses DefaultOrdering
	Consensus      ConsensusConfig
	ProviderCount  int // total distinct providers participating in this run
	ASTConfirmed   func(domain.Finding) bool
	GraphConfirmed func(domain.Finding) bool
	Quiet          QuietFilter
	Semantic       *SemanticHook
}

// Run executes the per-invocation finding pipeline in the order
// DESIGN.md's ledger fixes: dedup (with embedded suggestion sanity) →
// optional semantic-duplicate pass → consensus → evidence scoring →
// quiet-mode filter → title/message pattern filter. patch maps file path
// to its unified diff, used to resolve direct-evidence and pattern-filter
// checks against the added-lines set.
func Run(findings []domain.Finding, patch map[string]string, cfg RunConfig) []domain.Finding {
	ordering := cfg.Ordering
	if ordering == nil {
		ordering = DefaultOrdering
	}
	deduped := NewDeduplicator().WithOrdering(ordering).Deduplicate(findings)

	if cfg.Semantic != nil {
		deduped = semantic.Run(cfg.Semantic.Ctx, cfg.Semantic.Comparer, deduped, cfg.Semantic.Existing, cfg.Semantic.Config)
	}

	consensed := Consensus(deduped, cfg.Consensus)

	enriched := make([]domain.Finding, len(consensed))
	for i, f := range consensed {
		enriched[i] = enrich(f, patch, cfg)
	}

	quieted := cfg.Quiet.Apply(enriched)

	return FilterFindings(quieted, patch).Findings
}

// enrich scores a finding's evidence and populates EvidenceDetail, which
// no other stage in the pipeline currently sets.
func enrich(f domain.Finding, patch map[string]string, cfg RunConfig) domain.Finding {
	direct := lineInAddedLines(patch[f.File], f.Line)
	astConfirmed := cfg.ASTConfirmed != nil && cfg.ASTConfirmed(f)
	graphConfirmed := cfg.GraphConfirmed != nil && cfg.GraphConfirmed(f)

	scored := ScoreFinding(f, cfg.ProviderCount, EvidenceInputs{
		ASTConfirmed:   astConfirmed,
		GraphConfirmed: graphConfirmed,
		DirectEvidence: direct,
	})

	agreement := 0.0
	if cfg.ProviderCount > 0 {
		agreement = float64(len(f.Providers)) / float64(cfg.ProviderCount)
	}

	snippets := relatedSnippets(f, patch[f.File])
	scored.EvidenceDetail = &domain.EvidenceDetail{
		ChangedLines:      changedLines(patch[f.File]),
		RelatedSnippets:   snippets,
		ProviderAgreement: agreement,
		ASTConfirmed:      astConfirmed,
		GraphConfirmed:    graphConfirmed,
	}

	return scored
}

func lineInAddedLines(patch string, line int) bool {
	for _, added := range diffutil.MapAddedLines(patch) {
		if added.NewLine == line {
			return true
		}
	}
	return false
}

func changedLines(patch string) []int {
	added := diffutil.MapAddedLines(patch)
	if len(added) == 0 {
		return nil
	}
	lines := make([]int, len(added))
	for i, a := range added {
		lines[i] = a.NewLine
	}
	return lines
}

// relatedSnippets returns the single added line a finding sits on, as a
// CodeSnippet, when the patch confirms it; otherwise nil.
func relatedSnippets(f domain.Finding, patch string) []domain.CodeSnippet {
	for _, added := range diffutil.MapAddedLines(patch) {
		if added.NewLine == f.Line {
			return []domain.CodeSnippet{{File: f.File, StartLine: added.NewLine, EndLine: added.NewLine, Content: added.Content}}
		}
	}
	return nil
}
