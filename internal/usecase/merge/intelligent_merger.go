package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/store"
)

// PrecisionStore defines the interface for accessing precision priors.
type PrecisionStore interface {
	GetPrecisionPriors(ctx context.Context) (map[string]map[string]store.PrecisionPrior, error)
}

// SynthesisProvider defines the interface for LLM-based summary synthesis.
// This is intentionally a simple interface to avoid circular dependencies with
// the provider package.
type SynthesisProvider interface {
	Review(ctx context.Context, prompt string, seed uint64) (string, error)
}

// IntelligentMerger merges reviews with scoring, grouping, and synthesis.
type IntelligentMerger struct {
	store PrecisionStore

	// Scoring weights (should sum to 1.0)
	agreementWeight float64
	severityWeight  float64
	precisionWeight float64
	evidenceWeight  float64

	// Similarity threshold for grouping (0.0-1.0)
	similarityThreshold float64

	// LLM-based synthesis (optional)
	synthProvider SynthesisProvider // Provider for summary synthesis (can be nil)
	useLLM        bool              // Use LLM for synthesis vs simple concatenation
}

// NewIntelligentMerger creates a new intelligent merger with default weights.
func NewIntelligentMerger(precisionStore PrecisionStore) *IntelligentMerger {
	return &IntelligentMerger{
		store:               precisionStore,
		agreementWeight:     0.4,
		severityWeight:      0.3,
		precisionWeight:     0.2,
		evidenceWeight:      0.1,
		similarityThreshold: 0.3, // Lowered from 0.7 to group similar issues better
		synthProvider:       nil,
		useLLM:              false,
	}
}

// WithSynthesisProvider configures LLM-based summary synthesis.
func (m *IntelligentMerger) WithSynthesisProvider(provider SynthesisProvider) *IntelligentMerger {
	m.synthProvider = provider
	m.useLLM = true
	return m
}

// findingGroup represents a group of similar findings.
type findingGroup struct {
	findings  []domain.Finding
	providers map[string]bool // Set of providers that found this issue
}

// Merge combines multiple provider reviews intelligently using scoring and grouping.
func (m *IntelligentMerger) Merge(ctx context.Context, reviews []ProviderReview) domain.Review {
	// Group similar findings
	groups := m.groupSimilarFindings(reviews)

	// Score each group
	scoredGroups := make([]scoredGroup, 0, len(groups))
	for _, group := range groups {
		score := m.scoreGroup(ctx, group)
		scoredGroups = append(scoredGroups, scoredGroup{
			group: group,
			score: score,
		})
	}

	// Sort by score (descending)
	sortByScore(scoredGroups)

	// Select representative finding from each group
	findings := make([]domain.Finding, 0, len(scoredGroups))
	for _, sg := range scoredGroups {
		representative := m.selectRepresentative(sg.group)
		findings = append(findings, representative)
	}

	// Synthesize summary
	summary := m.synthesizeSummary(reviews)

	var metrics domain.ReviewMetrics
	var runDetails []domain.ProviderRunDetail
	for _, pr := range reviews {
		metrics.CostUSD += pr.Review.Metrics.CostUSD
		metrics.InputTokens += pr.Review.Metrics.InputTokens
		metrics.OutputTokens += pr.Review.Metrics.OutputTokens
		runDetails = append(runDetails, pr.Review.RunDetails...)
	}

	merged := domain.Review{
		Summary:    summary,
		Findings:   findings,
		Metrics:    metrics,
		RunDetails: runDetails,
	}
	merged.Metrics = merged.BuildMetrics()
	return merged
}

// groupSimilarFindings groups findings that are likely the same issue.
func (m *IntelligentMerger) groupSimilarFindings(reviews []ProviderReview) []findingGroup {
	var groups []findingGroup
	processedHashes := make(map[string]bool)

	for _, pr := range reviews {
		for _, finding := range pr.Review.Findings {
			if finding.Provider == "" {
				finding = finding.WithProvider(pr.Provider)
			}

			h := finding.Hash()
			if processedHashes[h] {
				continue
			}

			// Create new group or find existing similar group
			var targetGroup *findingGroup
			for i := range groups {
				if m.areSimilar(finding, groups[i].findings[0]) {
					targetGroup = &groups[i]
					break
				}
			}

			if targetGroup == nil {
				// Create new group
				groups = append(groups, findingGroup{
					findings:  []domain.Finding{finding},
					providers: map[string]bool{pr.Provider: true},
				})
			} else {
				// Add to existing group
				targetGroup.findings = append(targetGroup.findings, finding)
				targetGroup.providers[pr.Provider] = true
			}

			processedHashes[h] = true
		}
	}

	return groups
}

// areSimilar determines if two findings are likely the same issue.
func (m *IntelligentMerger) areSimilar(a, b domain.Finding) bool {
	// Must be same file
	if a.File != b.File {
		return false
	}

	// Check line overlap
	if !linesOverlap(a.Line, a.Line, b.Line, b.Line) {
		return false
	}

	// Check title/message similarity
	similarity := stringSimilarity(a.Title+" "+a.Message, b.Title+" "+b.Message)
	return similarity >= m.similarityThreshold
}

// linesOverlap checks if two line ranges overlap.
func linesOverlap(start1, end1, start2, end2 int) bool {
	// Handle cases where end might be 0 (single line)
	if end1 == 0 {
		end1 = start1
	}
	if end2 == 0 {
		end2 = start2
	}

	// Check for overlap
	return start1 <= end2 && start2 <= end1
}

// stringSimilarity computes similarity between two strings (0.0-1.0).
// Uses simple word-based Jaccard similarity.
func stringSimilarity(a, b string) float64 {
	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	// Create word sets
	setA := make(map[string]bool)
	setB := make(map[string]bool)

	for _, word := range wordsA {
		setA[word] = true
	}
	for _, word := range wordsB {
		setB[word] = true
	}

	// Count intersection
	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}

	// Jaccard similarity: |A ∩ B| / |A ∪ B|
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// scoreGroup calculates a score for a finding group.
func (m *IntelligentMerger) scoreGroup(ctx context.Context, group findingGroup) float64 {
	if len(group.findings) == 0 {
		return 0.0
	}

	// Agreement component: how many providers found this
	agreementScore := float64(len(group.providers))

	// Severity component: average severity score
	severityScore := m.averageSeverityScore(group.findings)

	// Precision component: average precision prior for providers
	precisionScore := m.averagePrecisionScore(ctx, group)

	// Evidence component: ratio of findings with evidence
	evidenceScore := m.evidenceRatio(group.findings)

	// Weighted sum
	totalScore := (m.agreementWeight * agreementScore) +
		(m.severityWeight * severityScore) +
		(m.precisionWeight * precisionScore) +
		(m.evidenceWeight * evidenceScore)

	return totalScore
}

// averageSeverityScore converts severity to numeric score and averages.
func (m *IntelligentMerger) averageSeverityScore(findings []domain.Finding) float64 {
	if len(findings) == 0 {
		return 0.0
	}

	total := 0.0
	for _, f := range findings {
		total += severityToScore(f.Severity)
	}

	return total / float64(len(findings))
}

// severityToScore converts a Severity to a numeric score.
func severityToScore(severity domain.Severity) float64 {
	switch severity {
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

// averagePrecisionScore gets average precision for providers in this group.
func (m *IntelligentMerger) averagePrecisionScore(ctx context.Context, group findingGroup) float64 {
	if m.store == nil || len(group.findings) == 0 {
		return 0.5 // Default to medium precision if no store
	}

	priors, err := m.store.GetPrecisionPriors(ctx)
	if err != nil {
		return 0.5 // Default on error
	}

	// Get average precision across providers
	total := 0.0
	count := 0

	for provider := range group.providers {
		for _, finding := range group.findings {
			if categoryPriors, ok := priors[provider]; ok {
				if prior, ok := categoryPriors[finding.Category]; ok {
					total += prior.Precision()
					count++
				}
			}
		}
	}

	if count == 0 {
		return 0.5 // Default if no priors found
	}

	return total / float64(count)
}

// evidenceRatio computes the ratio of findings with supporting evidence.
func (m *IntelligentMerger) evidenceRatio(findings []domain.Finding) float64 {
	if len(findings) == 0 {
		return 0.0
	}

	count := 0
	for _, f := range findings {
		if f.Evidence != nil {
			count++
		}
	}

	return float64(count) / float64(len(findings))
}

// selectRepresentative chooses the best finding from a group.
func (m *IntelligentMerger) selectRepresentative(group findingGroup) domain.Finding {
	if len(group.findings) == 0 {
		return domain.Finding{}
	}

	// Prefer findings with evidence
	for _, f := range group.findings {
		if f.Evidence != nil {
			return f
		}
	}

	// Prefer higher severity
	best := group.findings[0]
	bestScore := severityToScore(best.Severity)

	for _, f := range group.findings[1:] {
		score := severityToScore(f.Severity)
		if score > bestScore {
			best = f
			bestScore = score
		}
	}

	return best
}

// synthesizeSummary creates a summary from multiple provider review summaries.
// If useLLM is true and synthProvider is available, uses LLM to generate cohesive narrative.
// Falls back to concatenation if LLM fails or is disabled.
func (m *IntelligentMerger) synthesizeSummary(reviews []ProviderReview) string {
	if len(reviews) == 0 {
		return "No reviews to merge."
	}

	if len(reviews) == 1 {
		return reviews[0].Review.Summary
	}

	// Try LLM-based synthesis if enabled
	if m.useLLM && m.synthProvider != nil {
		prompt := buildSynthesisPrompt(reviews)
		ctx := context.Background()

		// Use synthesis provider (typically a cheap, fast model)
		synthesizedSummary, err := m.synthProvider.Review(ctx, prompt, 0)
		if err == nil && synthesizedSummary != "" {
			return synthesizedSummary
		}
		// Fall through to concatenation on error
	}

	// Fall back to simple concatenation (original behavior)
	return concatenateSummaries(reviews)
}

// buildSynthesisPrompt creates a prompt for LLM-based summary synthesis.
func buildSynthesisPrompt(reviews []ProviderReview) string {
	var prompt strings.Builder

	prompt.WriteString("You are synthesizing code review results from multiple AI providers. ")
	prompt.WriteString("Create a cohesive, professional summary (200-300 words) that:\n\n")
	prompt.WriteString("1. Identifies key themes and patterns across all reviews\n")
	prompt.WriteString("2. Highlights areas of agreement between providers\n")
	prompt.WriteString("3. Notes any significant disagreements or unique findings\n")
	prompt.WriteString("4. Prioritizes critical and high-severity issues\n")
	prompt.WriteString("5. Provides actionable recommendations\n\n")
	prompt.WriteString("Input reviews:\n\n")

	for _, pr := range reviews {
		prompt.WriteString(fmt.Sprintf("**%s** - %d findings:\n", pr.Provider, len(pr.Review.Findings)))
		prompt.WriteString(pr.Review.Summary)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("Synthesize the above reviews into a cohesive summary. ")
	prompt.WriteString("Focus on the most important issues and provide clear next steps. ")
	prompt.WriteString("Do not repeat individual provider names unless highlighting disagreement.")

	return prompt.String()
}

// concatenateSummaries provides simple concatenation (original behavior).
func concatenateSummaries(reviews []ProviderReview) string {
	var parts []string
	for _, pr := range reviews {
		if pr.Review.Summary != "" {
			// Take first sentence or first 100 chars
			summary := pr.Review.Summary
			if idx := strings.Index(summary, "."); idx > 0 && idx < 100 {
				summary = summary[:idx+1]
			} else if len(summary) > 100 {
				summary = summary[:100] + "..."
			}
			parts = append(parts, fmt.Sprintf("%s: %s", pr.Provider, summary))
		}
	}

	if len(parts) == 0 {
		return "Multiple providers completed the review."
	}

	return strings.Join(parts, " | ")
}

// scoredGroup pairs a group with its score for sorting.
type scoredGroup struct {
	group findingGroup
	score float64
}

// sortByScore sorts scored groups by score (descending).
func sortByScore(groups []scoredGroup) {
	// Simple bubble sort (good enough for small n)
	n := len(groups)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if groups[j].score < groups[j+1].score {
				groups[j], groups[j+1] = groups[j+1], groups[j]
			}
		}
	}
}

// Compile-time check that IntelligentMerger satisfies the same shape as Service.
var _ interface {
	Merge(context.Context, []ProviderReview) domain.Review
} = (*IntelligentMerger)(nil)
