package merge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/store"
)

func reviewsOf(findings ...domain.Finding) []domain.Finding {
	return findings
}

func TestGroupSimilarFindings(t *testing.T) {
	tests := []struct {
		name           string
		reviews        []ProviderReview
		expectedGroups int
	}{
		{
			name: "exact duplicates group together",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "main.go", Line: 10, Title: "Null pointer dereference", Category: "bug"},
				)}},
				{Provider: "anthropic", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "main.go", Line: 10, Title: "Null pointer dereference", Category: "bug"},
				)}},
			},
			expectedGroups: 1,
		},
		{
			name: "similar findings group together",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "auth.go", Line: 22, Title: "Potential SQL injection vulnerability", Category: "security"},
				)}},
				{Provider: "anthropic", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "auth.go", Line: 24, Title: "SQL injection risk detected", Category: "security"},
				)}},
			},
			expectedGroups: 1, // Should group together (same file, overlapping lines, similar title)
		},
		{
			name: "different files don't group",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "auth.go", Line: 20, Title: "SQL injection", Category: "security"},
				)}},
				{Provider: "anthropic", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "db.go", Line: 20, Title: "SQL injection", Category: "security"},
				)}},
			},
			expectedGroups: 2, // Different files, should not group
		},
		{
			name: "non-overlapping lines don't group",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "main.go", Line: 10, Title: "Issue here", Category: "bug"},
				)}},
				{Provider: "anthropic", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "main.go", Line: 50, Title: "Issue there", Category: "bug"},
				)}},
			},
			expectedGroups: 2, // Same file but non-overlapping lines
		},
		{
			name: "completely different findings don't group",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "main.go", Line: 20, Title: "Memory leak detected", Category: "bug"},
				)}},
				{Provider: "anthropic", Review: domain.Review{Findings: reviewsOf(
					domain.Finding{File: "main.go", Line: 22, Title: "Unused variable", Category: "style"},
				)}},
			},
			expectedGroups: 2, // Different issues, should not group
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := NewIntelligentMerger(nil)
			groups := merger.groupSimilarFindings(tt.reviews)

			if len(groups) != tt.expectedGroups {
				t.Errorf("expected %d groups, got %d", tt.expectedGroups, len(groups))
				for i, group := range groups {
					t.Logf("Group %d: %d findings", i, len(group.findings))
					for j, f := range group.findings {
						t.Logf("  Finding %d: %s:%d %s", j, f.File, f.Line, f.Title)
					}
				}
			}
		})
	}
}

func TestScoreFindings(t *testing.T) {
	// Mock store with precision priors
	mockStore := &mockPrecisionStore{
		priors: map[string]map[string]store.PrecisionPrior{
			"openai": {
				"security": {Provider: "openai", Category: "security", Alpha: 10, Beta: 2}, // High precision: 0.83
			},
			"anthropic": {
				"security": {Provider: "anthropic", Category: "security", Alpha: 5, Beta: 5}, // Medium precision: 0.5
			},
		},
	}

	highConfidence := 0.9

	tests := []struct {
		name          string
		group         findingGroup
		expectedScore float64 // Approximate expected score
	}{
		{
			name: "high agreement high severity high precision",
			group: findingGroup{
				findings: []domain.Finding{
					{Severity: domain.SeverityCritical, Category: "security", Evidence: &domain.EvidenceScore{Confidence: highConfidence}},
					{Severity: domain.SeverityCritical, Category: "security", Evidence: &domain.EvidenceScore{Confidence: highConfidence}},
					{Severity: domain.SeverityCritical, Category: "security", Evidence: &domain.EvidenceScore{Confidence: highConfidence}},
				},
				providers: map[string]bool{"openai": true, "anthropic": true, "gemini": true},
			},
			expectedScore: 1.5, // Approximate
		},
		{
			name: "low agreement low severity",
			group: findingGroup{
				findings: []domain.Finding{
					{Severity: domain.SeverityMinor, Category: "style", Evidence: nil},
				},
				providers: map[string]bool{"openai": true},
			},
			expectedScore: 0.6, // Approximate upper bound
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := NewIntelligentMerger(mockStore)
			score := merger.scoreGroup(context.Background(), tt.group)

			// Check if score is in reasonable range
			if score < 0 || score > 5.0 {
				t.Errorf("score %f outside expected range [0, 5.0]", score)
			}

			// Rough check for expected score (within 50% tolerance)
			if score > tt.expectedScore*1.5 || score < tt.expectedScore*0.5 {
				t.Logf("score %f differs from expected %f (may be acceptable)", score, tt.expectedScore)
			}
		})
	}
}

func TestSynthesizeSummary(t *testing.T) {
	tests := []struct {
		name     string
		reviews  []ProviderReview
		expected []string // Strings that should appear in summary
	}{
		{
			name: "combines summaries from multiple providers",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Summary: "Found 3 security issues"}},
				{Provider: "anthropic", Review: domain.Review{Summary: "Detected 2 performance problems"}},
			},
			expected: []string{"security", "performance"},
		},
		{
			name: "handles single review",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Summary: "Code looks good overall"}},
			},
			expected: []string{"Code looks good"},
		},
		{
			name: "handles empty summaries",
			reviews: []ProviderReview{
				{Provider: "openai", Review: domain.Review{Summary: ""}},
				{Provider: "anthropic", Review: domain.Review{Summary: "Found issues"}},
			},
			expected: []string{"Found issues"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := NewIntelligentMerger(nil)
			summary := merger.synthesizeSummary(tt.reviews)

			for _, expected := range tt.expected {
				if !strings.Contains(strings.ToLower(summary), strings.ToLower(expected)) {
					t.Errorf("expected summary to contain %q, got: %s", expected, summary)
				}
			}

			// Summary should not be the hardcoded default
			if summary == "This is a merged review." {
				t.Error("summary should not be the hardcoded default")
			}
		})
	}
}

func TestIntelligentMerge_Integration(t *testing.T) {
	// Integration test with realistic data
	reviews := []ProviderReview{
		{
			Provider: "openai",
			Review: domain.Review{
				Summary: "Found 2 critical security vulnerabilities in authentication code",
				Metrics: domain.ReviewMetrics{InputTokens: 1500, OutputTokens: 250, CostUSD: 0.0012},
				Findings: []domain.Finding{
					{
						File:       "auth/handler.go",
						Line:       46,
						Severity:   domain.SeverityCritical,
						Category:   "security",
						Title:      "SQL injection vulnerability in login query",
						Suggestion: "Use parameterized queries",
						Evidence:   &domain.EvidenceScore{Confidence: 0.9},
					},
					{
						File:     "auth/validator.go",
						Line:     20,
						Severity: domain.SeverityMajor,
						Category: "bug",
						Title:    "Missing null check",
					},
				},
			},
		},
		{
			Provider: "anthropic",
			Review: domain.Review{
				Summary: "Identified SQL injection risk and potential null pointer issue",
				Metrics: domain.ReviewMetrics{InputTokens: 2000, OutputTokens: 300, CostUSD: 0.0018},
				Findings: []domain.Finding{
					{
						File:       "auth/handler.go",
						Line:       47,
						Severity:   domain.SeverityCritical,
						Category:   "security",
						Title:      "Unsafe SQL query construction allows injection",
						Suggestion: "Switch to prepared statements",
						Evidence:   &domain.EvidenceScore{Confidence: 0.85},
					},
					{
						File:     "util/parser.go",
						Line:     101,
						Severity: domain.SeverityMinor,
						Category: "style",
						Title:    "Consider using early return pattern",
					},
				},
			},
		},
	}

	merger := NewIntelligentMerger(nil)
	result := merger.Merge(context.Background(), reviews)

	// Summary should be synthesized, not hardcoded
	if result.Summary == "This is a merged review." {
		t.Error("summary should be synthesized, not hardcoded default")
	}

	if !strings.Contains(strings.ToLower(result.Summary), "sql") {
		t.Error("summary should mention SQL issues from both reviews")
	}

	// Should have findings (exact count depends on grouping logic)
	if len(result.Findings) == 0 {
		t.Error("merged review should have findings")
	}

	// Should group similar SQL injection findings
	totalFindings := len(reviews[0].Review.Findings) + len(reviews[1].Review.Findings)
	if len(result.Findings) >= totalFindings {
		t.Logf("Warning: expected grouping to reduce findings from %d, got %d", totalFindings, len(result.Findings))
	}

	// Verify usage metadata aggregation
	expectedTokensIn := 1500 + 2000
	expectedTokensOut := 250 + 300
	expectedCost := 0.0012 + 0.0018

	if result.Metrics.InputTokens != expectedTokensIn {
		t.Errorf("expected InputTokens %d, got %d", expectedTokensIn, result.Metrics.InputTokens)
	}
	if result.Metrics.OutputTokens != expectedTokensOut {
		t.Errorf("expected OutputTokens %d, got %d", expectedTokensOut, result.Metrics.OutputTokens)
	}
	if result.Metrics.CostUSD != expectedCost {
		t.Errorf("expected CostUSD %.4f, got %.4f", expectedCost, result.Metrics.CostUSD)
	}
}

// mockPrecisionStore implements the Store interface for testing
type mockPrecisionStore struct {
	priors map[string]map[string]store.PrecisionPrior
}

func (m *mockPrecisionStore) GetPrecisionPriors(ctx context.Context) (map[string]map[string]store.PrecisionPrior, error) {
	if m.priors == nil {
		return make(map[string]map[string]store.PrecisionPrior), nil
	}
	return m.priors, nil
}

// Implement other Store methods (not used in these tests)
func (m *mockPrecisionStore) CreateRun(ctx context.Context, run store.Run) error { return nil }
func (m *mockPrecisionStore) UpdateRunCost(ctx context.Context, runID string, totalCost float64) error {
	return nil
}
func (m *mockPrecisionStore) GetRun(ctx context.Context, runID string) (store.Run, error) {
	return store.Run{}, nil
}
func (m *mockPrecisionStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	return nil, nil
}
func (m *mockPrecisionStore) SaveReview(ctx context.Context, review store.ReviewRecord) error {
	return nil
}
func (m *mockPrecisionStore) GetReview(ctx context.Context, reviewID string) (store.ReviewRecord, error) {
	return store.ReviewRecord{}, nil
}
func (m *mockPrecisionStore) GetReviewsByRun(ctx context.Context, runID string) ([]store.ReviewRecord, error) {
	return nil, nil
}
func (m *mockPrecisionStore) SaveFindings(ctx context.Context, findings []store.FindingRecord) error {
	return nil
}
func (m *mockPrecisionStore) GetFinding(ctx context.Context, findingID string) (store.FindingRecord, error) {
	return store.FindingRecord{}, nil
}
func (m *mockPrecisionStore) GetFindingsByReview(ctx context.Context, reviewID string) ([]store.FindingRecord, error) {
	return nil, nil
}
func (m *mockPrecisionStore) RecordFeedback(ctx context.Context, feedback store.Feedback) error {
	return nil
}
func (m *mockPrecisionStore) GetFeedbackForFinding(ctx context.Context, findingID string) ([]store.Feedback, error) {
	return nil, nil
}
func (m *mockPrecisionStore) UpdatePrecisionPrior(ctx context.Context, provider, category string, accepted, rejected int) error {
	return nil
}
func (m *mockPrecisionStore) Close() error { return nil }

// Test LLM-based summary synthesis
func TestBuildSynthesisPrompt(t *testing.T) {
	reviews := []ProviderReview{
		{
			Provider: "openai",
			Review: domain.Review{
				Summary:  "Found 3 critical security issues including SQL injection and XSS vulnerabilities.",
				Findings: make([]domain.Finding, 3),
			},
		},
		{
			Provider: "anthropic",
			Review: domain.Review{
				Summary:  "Identified 2 high-severity issues: SQL injection risk and improper input validation.",
				Findings: make([]domain.Finding, 2),
			},
		},
	}

	prompt := buildSynthesisPrompt(reviews)

	// Check prompt contains provider summaries
	if !strings.Contains(prompt, "openai") {
		t.Error("prompt should contain openai provider name")
	}
	if !strings.Contains(prompt, "anthropic") {
		t.Error("prompt should contain anthropic provider name")
	}

	// Check prompt contains summaries
	if !strings.Contains(prompt, "SQL injection") {
		t.Error("prompt should contain finding descriptions from summaries")
	}

	// Check prompt contains finding counts
	if !strings.Contains(prompt, "3") || !strings.Contains(prompt, "2") {
		t.Error("prompt should contain finding counts")
	}

	// Check prompt has synthesis instructions
	lowerPrompt := strings.ToLower(prompt)
	if !strings.Contains(lowerPrompt, "synthesize") || !strings.Contains(lowerPrompt, "cohesive") {
		t.Errorf("prompt should contain synthesis instructions, got: %s", prompt)
	}
}

func TestSynthesizeSummary_WithLLM(t *testing.T) {
	mockProvider := &mockSynthesisProvider{
		response: "Comprehensive analysis reveals 5 distinct issues across 2 providers. Both OpenAI and Anthropic identified critical SQL injection vulnerabilities. Additionally, XSS and input validation issues were found. Immediate attention required for security fixes.",
	}

	merger := &IntelligentMerger{
		synthProvider: mockProvider,
		useLLM:        true,
	}

	reviews := []ProviderReview{
		{Provider: "openai", Review: domain.Review{Summary: "Found SQL injection and XSS."}},
		{Provider: "anthropic", Review: domain.Review{Summary: "SQL injection and validation issues."}},
	}

	summary := merger.synthesizeSummary(reviews)

	// Should use LLM response
	if !strings.Contains(summary, "Comprehensive analysis") {
		t.Errorf("expected LLM-generated summary, got: %s", summary)
	}

	// Should NOT contain concatenated format
	if strings.Contains(summary, "openai:") || strings.Contains(summary, "|") {
		t.Error("should not use concatenation format when LLM is enabled")
	}

	// Verify provider was called
	if !mockProvider.called {
		t.Error("synthesis provider should have been called")
	}
}

func TestSynthesizeSummary_LLMFallback(t *testing.T) {
	mockProvider := &mockSynthesisProvider{
		shouldFail: true,
	}

	merger := &IntelligentMerger{
		synthProvider: mockProvider,
		useLLM:        true,
	}

	reviews := []ProviderReview{
		{Provider: "openai", Review: domain.Review{Summary: "Found issues."}},
		{Provider: "anthropic", Review: domain.Review{Summary: "Found problems."}},
	}

	summary := merger.synthesizeSummary(reviews)

	// Should fall back to concatenation
	if !strings.Contains(summary, "openai:") || !strings.Contains(summary, "|") {
		t.Error("should fall back to concatenation when LLM fails")
	}

	// Verify provider was called (but failed)
	if !mockProvider.called {
		t.Error("synthesis provider should have been attempted")
	}
}

func TestSynthesizeSummary_LLMDisabled(t *testing.T) {
	mockProvider := &mockSynthesisProvider{}

	merger := &IntelligentMerger{
		synthProvider: mockProvider,
		useLLM:        false, // Disabled
	}

	reviews := []ProviderReview{
		{Provider: "openai", Review: domain.Review{Summary: "Found issues."}},
		{Provider: "anthropic", Review: domain.Review{Summary: "Found problems."}},
	}

	summary := merger.synthesizeSummary(reviews)

	// Should use concatenation
	if !strings.Contains(summary, "openai:") {
		t.Error("should use concatenation when LLM is disabled")
	}

	// Provider should NOT have been called
	if mockProvider.called {
		t.Error("synthesis provider should not be called when useLLM is false")
	}
}

func TestSynthesizeSummary_NoProvider(t *testing.T) {
	merger := &IntelligentMerger{
		synthProvider: nil,
		useLLM:        true, // Enabled but no provider
	}

	reviews := []ProviderReview{
		{Provider: "openai", Review: domain.Review{Summary: "Found issues."}},
		{Provider: "anthropic", Review: domain.Review{Summary: "Found problems."}},
	}

	summary := merger.synthesizeSummary(reviews)

	// Should fall back to concatenation when provider is nil
	if !strings.Contains(summary, "openai:") || !strings.Contains(summary, "|") {
		t.Errorf("should fall back to concatenation when provider is nil, got: %s", summary)
	}
}

// Mock synthesis provider for testing
type mockSynthesisProvider struct {
	response   string
	shouldFail bool
	called     bool
}

func (m *mockSynthesisProvider) Review(ctx context.Context, prompt string, seed uint64) (string, error) {
	m.called = true
	if m.shouldFail {
		return "", fmt.Errorf("synthesis failed: mock provider error")
	}
	return m.response, nil
}
