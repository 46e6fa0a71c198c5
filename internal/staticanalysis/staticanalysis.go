// Package staticanalysis implements the three local analyzers spec.md's
// "Static phase" names: pattern-based AST findings, a secret scanner over
// added lines, and a small rules engine. Every finding they produce carries
// one of the reserved provider names in domain.LocalAnalyzerProviders, which
// is what lets internal/pipeline's consensus stage treat them as already
// "confirmed" rather than subject to provider agreement.
package staticanalysis

import "github.com/mprcore/reviewd/internal/domain"

// Config mirrors the subset of result.RelevantConfig that gates the local
// analyzers, kept as its own type so this package doesn't import the cache
// layer just for four booleans.
type Config struct {
	EnableASTAnalysis bool
	EnableSecurity    bool
	EnableTestHints   bool
	EnableAIDetection bool
}

// Run executes every enabled local analyzer over filesToReview's added
// lines and returns the concatenation of their findings, in the order
// spec.md §4.9 step 7 names them: AST/patterns, secret scanner, rules.
func Run(files []domain.FileChange, cfg Config) []domain.Finding {
	var findings []domain.Finding

	if cfg.EnableASTAnalysis {
		findings = append(findings, AnalyzeAST(files)...)
	}
	if cfg.EnableSecurity {
		findings = append(findings, ScanSecrets(files)...)
	}
	findings = append(findings, ApplyRules(files, cfg)...)

	return findings
}
