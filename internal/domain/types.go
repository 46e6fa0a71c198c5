// Package domain holds the core value types shared across the review
// orchestration engine: changed-file descriptions, the pull-request context
// they belong to, and the findings produced by analyzers and providers.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Severity is the importance of a Finding. Order: critical > major > minor.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// severityRank gives a numeric ordering for comparisons; higher is worse.
var severityRank = map[Severity]int{
	SeverityCritical: 3,
	SeverityMajor:    2,
	SeverityMinor:    1,
}

// IsValid reports whether s is one of the three recognized severities.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at least as severe as other.
// Unrecognized severities rank below every valid severity.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Worse returns whichever of a and b is the more severe; ties favor a.
func Worse(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// FileStatus enumerates how a file changed in a diff.
type FileStatus string

const (
	FileStatusAdded    FileStatus = "added"
	FileStatusModified FileStatus = "modified"
	FileStatusRemoved  FileStatus = "removed"
	FileStatusRenamed  FileStatus = "renamed"
)

// FileChange describes one file's change within a diff. NewFileChange
// enforces the changes = additions + deletions invariant; callers should
// not construct FileChange literals directly once additions/deletions are
// known independently.
type FileChange struct {
	Filename         string
	Status           FileStatus
	Additions        int
	Deletions        int
	Changes          int
	Patch            string
	PreviousFilename string // set when Status == FileStatusRenamed
}

// NewFileChange builds a FileChange, computing Changes from Additions and
// Deletions so callers can never construct an inconsistent value.
func NewFileChange(filename string, status FileStatus, additions, deletions int, patch, previousFilename string) FileChange {
	return FileChange{
		Filename:         filename,
		Status:           status,
		Additions:        additions,
		Deletions:        deletions,
		Changes:          additions + deletions,
		Patch:            patch,
		PreviousFilename: previousFilename,
	}
}

// PRContext is the read-only description of the pull request under review.
// The core never mutates a PRContext in place; WithFiles/WithDiff return a
// new value instead.
type PRContext struct {
	Number  int
	Title   string
	Body    string
	Author  string
	Draft   bool
	Labels  map[string]struct{}
	Files   []FileChange
	Diff    string
	BaseSHA string
	HeadSHA string
}

// NewPRContext constructs a PRContext from an ordered file list and a label set.
func NewPRContext(number int, title, body, author string, draft bool, labels []string, files []FileChange, diff, baseSHA, headSHA string) PRContext {
	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}
	filesCopy := make([]FileChange, len(files))
	copy(filesCopy, files)
	return PRContext{
		Number:  number,
		Title:   title,
		Body:    body,
		Author:  author,
		Draft:   draft,
		Labels:  labelSet,
		Files:   filesCopy,
		Diff:    diff,
		BaseSHA: baseSHA,
		HeadSHA: headSHA,
	}
}

// HasLabel reports whether the PR carries the given label.
func (p PRContext) HasLabel(label string) bool {
	_, ok := p.Labels[label]
	return ok
}

// TotalChangedLines sums additions and deletions across every file.
func (p PRContext) TotalChangedLines() int {
	total := 0
	for _, f := range p.Files {
		total += f.Changes
	}
	return total
}

// WithFiles returns a copy of p with Files replaced. p is never mutated.
func (p PRContext) WithFiles(files []FileChange) PRContext {
	next := p
	next.Files = make([]FileChange, len(files))
	copy(next.Files, files)
	return next
}

// WithDiff returns a copy of p with Diff replaced. p is never mutated.
func (p PRContext) WithDiff(diff string) PRContext {
	next := p
	next.Diff = diff
	return next
}

// CodeSnippet is a small excerpt of source used as supporting evidence.
type CodeSnippet struct {
	File      string
	StartLine int
	EndLine   int
	Content   string
}

// EvidenceDetail captures the raw signals behind an EvidenceScore.
type EvidenceDetail struct {
	ChangedLines       []int
	RelatedSnippets    []CodeSnippet
	ProviderAgreement  float64
	ASTConfirmed       bool
	GraphConfirmed     bool
}

// EvidenceBadge buckets a confidence score into a human label.
type EvidenceBadge string

const (
	BadgeLow      EvidenceBadge = "Low"
	BadgeMedium   EvidenceBadge = "Medium"
	BadgeHigh     EvidenceBadge = "High"
	BadgeVeryHigh EvidenceBadge = "Very High"
)

// EvidenceScore is the confidence assessment attached to a Finding.
type EvidenceScore struct {
	Confidence float64
	Reasoning  string
	Badge      EvidenceBadge
}

// Finding is a single issue attributed to a file and line.
type Finding struct {
	File           string
	Line           int
	Severity       Severity
	Title          string
	Message        string
	Suggestion     string
	Category       string
	Provider       string // empty for locally-produced findings (ast/security/rules)
	Providers      map[string]struct{}
	Confidence     *float64
	Evidence       *EvidenceScore
	EvidenceDetail *EvidenceDetail
}

// LocalAnalyzerProviders are the names reserved for findings produced by
// local static analysis rather than an LLM provider.
var LocalAnalyzerProviders = map[string]struct{}{
	"ast":      {},
	"security": {},
	"rules":    {},
}

// IsLocal reports whether f originated from a local analyzer rather than an
// LLM provider. Such findings bypass the consensus agreement threshold.
func (f Finding) IsLocal() bool {
	if f.Provider == "" {
		return true
	}
	_, ok := LocalAnalyzerProviders[f.Provider]
	return ok
}

// ProviderSet returns the sorted list of provider names attributed to f.
func (f Finding) ProviderSet() []string {
	names := make([]string, 0, len(f.Providers))
	for p := range f.Providers {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// WithProvider returns a copy of f with a single provider recorded in both
// Provider and Providers. Used when a local analyzer constructs a Finding.
func (f Finding) WithProvider(name string) Finding {
	next := f
	next.Provider = name
	next.Providers = map[string]struct{}{name: {}}
	return next
}

// firstTokens returns up to n whitespace-separated tokens from s, lowercased.
func firstTokens(s string, n int) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// DedupKey is the identity used to group findings for deduplication:
// (file, line, lower(title) or lower(first 12 tokens of message)).
func (f Finding) DedupKey() string {
	bucket := strings.ToLower(strings.TrimSpace(f.Title))
	if bucket == "" {
		bucket = firstTokens(f.Message, 12)
	}
	return fmt.Sprintf("%s|%d|%s", f.File, f.Line, bucket)
}

// Hash returns a stable content hash of the finding, independent of which
// providers reported it. Used as a map key in the dedup/merge pipeline and
// as a persistence identifier.
func (f Finding) Hash() string {
	payload := fmt.Sprintf("%s|%d|%s|%s|%s", f.File, f.Line, f.Severity, f.Title, f.Message)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}

// ReviewMetrics summarizes the cost and shape of a completed Review.
type ReviewMetrics struct {
	TotalFindings    int
	CriticalCount    int
	MajorCount       int
	MinorCount       int
	CostUSD          float64
	InputTokens      int
	OutputTokens     int
	DurationMillis   int64
	CacheHit         bool
	ProvidersSuccess int
	ProvidersFailed  int
}

// ProviderRunDetail records per-provider execution detail for a Review.
type ProviderRunDetail struct {
	Provider       string
	Status         string
	DurationMillis int64
	Error          string
}

// Review aggregates the findings pipeline output for one orchestration run.
type Review struct {
	Findings   []Finding
	Metrics    ReviewMetrics
	RunDetails []ProviderRunDetail
	Summary    string
}

// BuildMetrics recomputes severity counts on r.Metrics from r.Findings,
// preserving the cost/token/duration/cacheHit fields already set.
func (r Review) BuildMetrics() ReviewMetrics {
	m := r.Metrics
	m.TotalFindings = len(r.Findings)
	m.CriticalCount, m.MajorCount, m.MinorCount = 0, 0, 0
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical:
			m.CriticalCount++
		case SeverityMajor:
			m.MajorCount++
		case SeverityMinor:
			m.MinorCount++
		}
	}
	return m
}

// ExitCode implements the review's exit semantics: 0 for clean or minor-only
// results, 1 when at least one major finding exists, 2 when at least one
// critical finding exists.
func (r Review) ExitCode() int {
	sawMajor := false
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return 2
		}
		if f.Severity == SeverityMajor {
			sawMajor = true
		}
	}
	if sawMajor {
		return 1
	}
	return 0
}

// MarkdownArtifact encapsulates the Markdown generation inputs.
type MarkdownArtifact struct {
	OutputDir    string
	Repository   string
	BaseRef      string
	TargetRef    string
	Review       Review
	ProviderName string
}

// JSONArtifact encapsulates the JSON generation inputs.
type JSONArtifact struct {
	OutputDir    string
	Repository   string
	BaseRef      string
	TargetRef    string
	Review       Review
	ProviderName string
}

// SARIFArtifact encapsulates the SARIF generation inputs.
type SARIFArtifact struct {
	OutputDir    string
	Repository   string
	BaseRef      string
	TargetRef    string
	Review       Review
	ProviderName string
}
