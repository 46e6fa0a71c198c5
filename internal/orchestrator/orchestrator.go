// Package orchestrator implements spec.md §4.9's review orchestration:
// the ten-step pipeline from skip gating through persist & emit, tying
// together every other internal package into one review invocation.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mprcore/reviewd/internal/adapter/observability"
	"github.com/mprcore/reviewd/internal/batch"
	"github.com/mprcore/reviewd/internal/cache/graph"
	"github.com/mprcore/reviewd/internal/cache/incremental"
	"github.com/mprcore/reviewd/internal/cache/result"
	"github.com/mprcore/reviewd/internal/codegraph"
	"github.com/mprcore/reviewd/internal/cost"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/executor"
	"github.com/mprcore/reviewd/internal/pipeline"
	"github.com/mprcore/reviewd/internal/provider"
	"github.com/mprcore/reviewd/internal/staticanalysis"
	"github.com/mprcore/reviewd/internal/store"
	"github.com/mprcore/reviewd/internal/usecase/skip"
	"github.com/mprcore/reviewd/internal/usecase/triage"
)

// PromptBuilder renders the prompt sent to one provider for one batch of
// files, given the PR context and the file's assigned intensity.
type PromptBuilder func(pr domain.PRContext, files []domain.FileChange, providerName string, intensity map[string]triage.Intensity) string

// Config bundles every toggle the orchestrator's ten steps consume.
type Config struct {
	Skip        skip.Config
	Trivial     triage.Config
	Intensity   IntensityConfig
	GraphMaxDepth int
	GraphEnabled  bool
	BatchSize     batch.SizeConfig
	HealthCheckTimeout time.Duration
	Consensus   pipeline.ConsensusConfig
	Quiet       pipeline.QuietFilter
	IncrementalEnabled bool
	IncrementalCacheTTLDays int
	StaticAnalysis staticanalysis.Config
}

// IntensityConfig configures path-based intensity classification.
type IntensityConfig struct {
	Rules            []triage.IntensityRule
	DefaultIntensity triage.Intensity
}

// Dependencies are the collaborators Run needs beyond pure computation:
// caches, the provider pool/executor, and optional logging.
type Dependencies struct {
	GraphStore       *graph.Store[*codegraph.Graph]
	ResultStore      *result.Store
	IncrementalStore *incremental.Store
	VCS              incremental.VCS
	GraphBuilder     *codegraph.Builder
	Pool             *provider.Pool
	Executor         *executor.Executor
	Providers        []executor.Provider
	CostTracker      *cost.Tracker
	PromptBuilder    PromptBuilder
	Logger           observability.Logger
	Metrics          *observability.Metrics
	// Store persists run/review/finding history for the feedback loop that
	// backs provider precision priors. Optional: nil disables history.
	Store store.Store
}

// Orchestrator runs one review invocation end to end.
type Orchestrator struct {
	cfg  Config
	deps Dependencies
}

// New builds an Orchestrator.
func New(cfg Config, deps Dependencies) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps}
}

func (o *Orchestrator) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if o.deps.Logger != nil {
		o.deps.Logger.LogWarning(ctx, msg, fields)
	}
}

func (o *Orchestrator) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if o.deps.Logger != nil {
		o.deps.Logger.LogInfo(ctx, msg, fields)
	}
}

// Run executes spec.md §4.9's ten steps for one PR. Fatal errors abort
// and are returned to the caller; everything else (cache misses, graph
// build failures, I/O failures at persist time) degrades gracefully per
// step, logged as warnings.
func (o *Orchestrator) Run(ctx context.Context, pr domain.PRContext) (domain.Review, error) {
	start := time.Now()

	// Step 1: skip gating.
	if skipped, reason := skip.Check(pr, o.cfg.Skip); skipped {
		o.recordSkip(reason)
		return domain.Review{Summary: "skipped: " + reason}, nil
	}

	// Step 2: trivial detection.
	reviewable, _, allTrivial := triage.Split(pr.Files, o.cfg.Trivial)
	if allTrivial {
		o.recordSkip("all_trivial")
		return domain.Review{Summary: "trivial review: every changed file matched a trivial category"}, nil
	}
	filesToReview := reviewable
	reviewPR := pr.WithFiles(filesToReview)

	// Step 3: intensity classification.
	intensity := make(map[string]triage.Intensity, len(filesToReview))
	for _, f := range filesToReview {
		intensity[f.Filename] = triage.Classify(f.Filename, o.cfg.Intensity.Rules, o.cfg.Intensity.DefaultIntensity)
	}

	// Step 4: graph build (best-effort; failures never abort the run).
	var g *codegraph.Graph
	if o.cfg.GraphEnabled && o.deps.GraphStore != nil && o.deps.GraphBuilder != nil {
		g = o.buildGraph(ctx, pr, filesToReview)
	}

	// Step 5: incremental decision.
	var priorFindings []domain.Finding
	var priorSummaryRange string
	if o.deps.IncrementalStore != nil {
		if rec, ok := o.deps.IncrementalStore.ShouldUseIncremental(pr, o.cfg.IncrementalEnabled, o.cfg.IncrementalCacheTTLDays); ok {
			if o.deps.Metrics != nil {
				o.deps.Metrics.RecordCacheHit("incremental")
			}
			changed := incremental.GetChangedFilesSince(ctx, o.deps.VCS, pr, rec.LastReviewedCommit)
			filesToReview = filterFilesByName(filesToReview, changed)
			reviewPR = pr.WithFiles(filesToReview)
			priorFindings = rec.Findings
			priorSummaryRange = fmt.Sprintf("%s..%s", rec.LastReviewedCommit, pr.HeadSHA)
		} else if o.deps.Metrics != nil {
			o.deps.Metrics.RecordCacheMiss("incremental")
		}
	}

	// Step 6: LLM phase.
	llmFindings, runDetails := o.runLLMPhase(ctx, reviewPR, intensity)

	// Step 7: static phase.
	staticFindings := staticanalysis.Run(filesToReview, o.cfg.StaticAnalysis)

	// Step 8: pipeline (concatenate [ast, rules, security, llm, cached] ->
	// dedup -> consensus -> evidence -> quiet filter -> pattern filter).
	var cachedFindings []domain.Finding
	cacheHit := false
	if o.deps.ResultStore != nil {
		if cached, ok := o.deps.ResultStore.Get(o.resultCacheKey(pr)); ok {
			cachedFindings = cached
			cacheHit = true
			if o.deps.Metrics != nil {
				o.deps.Metrics.RecordCacheHit("result")
			}
		} else if o.deps.Metrics != nil {
			o.deps.Metrics.RecordCacheMiss("result")
		}
	}

	patch := patchIndex(filesToReview)
	all := append(append(append([]domain.Finding{}, staticFindings...), llmFindings...), cachedFindings...)
	final := pipeline.Run(all, patch, pipeline.RunConfig{
		Consensus:      o.cfg.Consensus,
		ProviderCount:  len(o.deps.Providers),
		Quiet:          o.cfg.Quiet,
		ASTConfirmed: func(f domain.Finding) bool { return f.Provider == "ast" },
		GraphConfirmed: func(f domain.Finding) bool {
			if g == nil {
				return false
			}
			confirmed, diagram := graphConfirms(g, f)
			if confirmed {
				o.logInfo(ctx, "graph-confirmed finding", map[string]interface{}{"file": f.File, "diagram": diagram})
			}
			return confirmed
		},
	})

	// Step 9: merge with prior (incremental only).
	summary := defaultSummary(filesToReview)
	if priorSummaryRange != "" {
		kept := keepFindingsOutsideFiles(priorFindings, filesToReview)
		final = append(kept, final...)
		summary = fmt.Sprintf("Incremental review %s. Changed files: %s.", priorSummaryRange, strings.Join(filenames(filesToReview), ", "))
	}

	review := domain.Review{Findings: final, RunDetails: runDetails, Summary: summary}
	review.Metrics.CacheHit = cacheHit
	review.Metrics = review.BuildMetrics()
	if o.deps.CostTracker != nil {
		review.Metrics.CostUSD = o.deps.CostTracker.Total()
	}

	// Step 10: persist & emit.
	o.persist(ctx, pr, review)

	o.recordReview(review, intensity, time.Since(start))

	return review, nil
}

func (o *Orchestrator) recordSkip(reason string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordSkip(reason)
	}
}

func (o *Orchestrator) recordReview(review domain.Review, intensity map[string]triage.Intensity, d time.Duration) {
	if o.deps.Metrics == nil {
		return
	}
	dominant := triage.IntensityStandard
	for _, level := range intensity {
		if level == triage.IntensityThorough {
			dominant = level
			break
		}
	}
	o.deps.Metrics.RecordReview(outcomeOf(review), string(dominant), d)
	for _, f := range review.Findings {
		o.deps.Metrics.RecordFinding(string(f.Severity), f.Category)
	}
}

// outcomeOf derives a coarse review outcome label for metrics. The decision
// gate itself (config.DecisionConfig's onCritical/onHigh/... thresholds)
// lives at the bot/adapter layer that turns a Review into a GitHub review
// event; this only needs a label to bucket duration histograms by.
func outcomeOf(review domain.Review) string {
	switch {
	case review.Metrics.CriticalCount > 0 || review.Metrics.MajorCount > 0:
		return "request_changes"
	case review.Metrics.TotalFindings > 0:
		return "comment"
	default:
		return "approve"
	}
}

// resultCacheKey computes the content-addressed result-cache key for pr
// under the toggles that can change which findings a review produces, so
// a write in persist and a read in Run always agree on the same key for
// an unchanged (baseSha, headSha, config) triple.
func (o *Orchestrator) resultCacheKey(pr domain.PRContext) string {
	cfg := o.relevantResultConfig()
	return result.Key(pr.BaseSHA, pr.HeadSHA, &cfg)
}

// relevantResultConfig projects the orchestrator's Config down to exactly
// the toggles result.RelevantConfig tracks, so the cache key changes only
// when a setting that can actually change findings changes.
func (o *Orchestrator) relevantResultConfig() result.RelevantConfig {
	sc := o.cfg.StaticAnalysis
	patterns := make(map[string]string, len(o.cfg.Intensity.Rules))
	for _, r := range o.cfg.Intensity.Rules {
		patterns[r.Pattern] = string(r.Intensity)
	}
	return result.RelevantConfig{
		EnableASTAnalysis:     sc.EnableASTAnalysis,
		EnableSecurity:        sc.EnableSecurity,
		EnableTestHints:       sc.EnableTestHints,
		EnableAIDetection:     sc.EnableAIDetection,
		GraphEnabled:          o.cfg.GraphEnabled,
		GraphMaxDepth:         o.cfg.GraphMaxDepth,
		TrivialPatterns:       o.cfg.Trivial.CustomTrivialGlobs,
		InlineMinSeverity:     string(o.cfg.Consensus.InlineMinSeverity),
		InlineMinAgreement:    o.cfg.Consensus.InlineMinAgreement,
		PathBasedIntensity:    len(o.cfg.Intensity.Rules) > 0,
		PathIntensityPatterns: patterns,
		PathDefaultIntensity:  string(o.cfg.Intensity.DefaultIntensity),
	}
}

func (o *Orchestrator) buildGraph(ctx context.Context, pr domain.PRContext, files []domain.FileChange) *codegraph.Graph {
	key := graph.Key(pr.Number, pr.HeadSHA)
	g, ok := o.deps.GraphStore.Get(key)
	if ok && g != nil {
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordCacheHit("graph")
		}
	} else {
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordCacheMiss("graph")
		}
		g = codegraph.New()
	}
	warnings := o.deps.GraphBuilder.UpdateGraph(g, files)
	for _, w := range warnings {
		o.logWarn(ctx, "graph build warning", map[string]interface{}{"file": w.File, "message": w.Message})
	}
	if err := o.deps.GraphStore.Put(key, g); err != nil {
		o.logWarn(ctx, "graph cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return g
}

// runLLMPhase health-checks providers, dispatches batched review calls
// across whatever remains healthy, and returns the findings plus a
// per-provider run-detail record. An empty healthy set is not fatal: the
// run proceeds with zero LLM findings, per spec.md §4.9 step 6.
func (o *Orchestrator) runLLMPhase(ctx context.Context, pr domain.PRContext, intensity map[string]triage.Intensity) ([]domain.Finding, []domain.ProviderRunDetail) {
	if o.deps.Executor == nil || len(o.deps.Providers) == 0 {
		return nil, nil
	}

	healthy, healthResults := provider.FilterHealthyProviders(ctx, o.deps.Pool, asProviderSlice(o.deps.Providers), o.cfg.HealthCheckTimeout)
	details := make([]domain.ProviderRunDetail, 0, len(healthResults))
	for _, h := range healthResults {
		status := "error"
		if h.Healthy {
			status = "success"
		}
		details = append(details, domain.ProviderRunDetail{Provider: h.Name, Status: status, DurationMillis: h.Duration.Milliseconds(), Error: h.Error})
	}
	if len(healthy) == 0 {
		return nil, details
	}

	var tasks []executor.Task
	for _, hp := range healthy {
		ep := findExecutorProvider(o.deps.Providers, hp.Name())
		if ep == nil {
			continue
		}
		maxFiles, err := batch.GetBatchSize(ep.Name(), o.cfg.BatchSize)
		if err != nil {
			maxFiles = 10
		}
		plan := batch.PlanBatches(pr.Files, 4000, maxFiles)
		for _, b := range plan.Batches {
			prompt := ""
			if o.deps.PromptBuilder != nil {
				prompt = o.deps.PromptBuilder(pr, b.Files, ep.Name(), intensity)
			}
			tasks = append(tasks, executor.Task{Provider: ep, Prompt: prompt})
		}
	}

	results := o.deps.Executor.Dispatch(ctx, tasks)

	var findings []domain.Finding
	for _, r := range results {
		details = append(details, domain.ProviderRunDetail{
			Provider:       r.Provider,
			Status:         r.Status,
			DurationMillis: r.DurationMillis,
			Error:          errString(r.Err),
		})
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordProviderCall(r.Provider, r.Status, time.Duration(r.DurationMillis)*time.Millisecond, r.Review.Metrics.CostUSD, r.Review.Metrics.InputTokens, r.Review.Metrics.OutputTokens)
		}
		for _, f := range r.Review.Findings {
			findings = append(findings, f.WithProvider(r.Provider))
		}
	}

	return findings, details
}

func (o *Orchestrator) persist(ctx context.Context, pr domain.PRContext, review domain.Review) {
	if o.deps.ResultStore != nil {
		key := o.resultCacheKey(pr)
		if err := o.deps.ResultStore.Put(key, review.Findings); err != nil {
			o.logWarn(ctx, "result cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if o.deps.IncrementalStore != nil {
		rec := incremental.Record{PRNumber: pr.Number, LastReviewedCommit: pr.HeadSHA, Findings: review.Findings, ReviewSummary: review.Summary}
		if err := o.deps.IncrementalStore.Put(rec); err != nil {
			o.logWarn(ctx, "incremental record write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if o.deps.Store != nil {
		o.persistHistory(ctx, pr, review)
	}
	o.logInfo(ctx, "review complete", map[string]interface{}{"pr": pr.Number, "findings": len(review.Findings)})
}

// persistHistory records the run, one ReviewRecord per contributing
// provider, and every finding, so the feedback loop (accept/reject → Beta
// precision priors per provider/category) has something to update.
func (o *Orchestrator) persistHistory(ctx context.Context, pr domain.PRContext, review domain.Review) {
	runID := fmt.Sprintf("%d-%s", pr.Number, pr.HeadSHA)
	run := store.Run{
		RunID:      runID,
		Timestamp:  time.Now(),
		Scope:      fmt.Sprintf("pr-%d", pr.Number),
		TotalCost:  review.Metrics.CostUSD,
		BaseRef:    pr.BaseSHA,
		TargetRef:  pr.HeadSHA,
	}
	if err := o.deps.Store.CreateRun(ctx, run); err != nil {
		o.logWarn(ctx, "store create run failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, detail := range review.RunDetails {
		reviewID := runID + "-" + detail.Provider
		rec := store.ReviewRecord{
			ReviewID:  reviewID,
			RunID:     runID,
			Provider:  detail.Provider,
			Summary:   review.Summary,
			CreatedAt: run.Timestamp,
		}
		if err := o.deps.Store.SaveReview(ctx, rec); err != nil {
			o.logWarn(ctx, "store save review failed", map[string]interface{}{"error": err.Error(), "provider": detail.Provider})
		}
	}

	findings := make([]store.FindingRecord, 0, len(review.Findings))
	for _, f := range review.Findings {
		reviewID := runID + "-" + f.Provider
		confidence := 0.0
		if f.Confidence != nil {
			confidence = *f.Confidence
		}
		findings = append(findings, store.FindingRecord{
			FindingID:   f.Hash(),
			ReviewID:    reviewID,
			FindingHash: f.Hash(),
			File:        f.File,
			Line:        f.Line,
			Category:    f.Category,
			Severity:    f.Severity,
			Title:       f.Title,
			Message:     f.Message,
			Suggestion:  f.Suggestion,
			Confidence:  confidence,
		})
	}
	if len(findings) > 0 {
		if err := o.deps.Store.SaveFindings(ctx, findings); err != nil {
			o.logWarn(ctx, "store save findings failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func asProviderSlice(providers []executor.Provider) []provider.Provider {
	out := make([]provider.Provider, len(providers))
	for i, p := range providers {
		out[i] = p
	}
	return out
}

func findExecutorProvider(providers []executor.Provider, name string) executor.Provider {
	for _, p := range providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func filterFilesByName(files []domain.FileChange, names []string) []domain.FileChange {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	var out []domain.FileChange
	for _, f := range files {
		if _, ok := allowed[f.Filename]; ok {
			out = append(out, f)
		}
	}
	return out
}

func keepFindingsOutsideFiles(findings []domain.Finding, filesBeingReviewed []domain.FileChange) []domain.Finding {
	reviewed := make(map[string]struct{}, len(filesBeingReviewed))
	for _, f := range filesBeingReviewed {
		reviewed[f.Filename] = struct{}{}
	}
	var kept []domain.Finding
	for _, f := range findings {
		if _, ok := reviewed[f.File]; !ok {
			kept = append(kept, f)
		}
	}
	return kept
}

func patchIndex(files []domain.FileChange) map[string]string {
	idx := make(map[string]string, len(files))
	for _, f := range files {
		idx[f.Filename] = f.Patch
	}
	return idx
}

func filenames(files []domain.FileChange) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return names
}

func defaultSummary(files []domain.FileChange) string {
	return fmt.Sprintf("Reviewed %d changed file(s).", len(files))
}

// graphConfirms reports whether the graph's impact analysis for f.File
// clears the "confirmed" threshold, returning the mermaid diagram of that
// impact alongside so the caller can log what the confirmation looked
// like without recomputing it.
func graphConfirms(g *codegraph.Graph, f domain.Finding) (bool, string) {
	report := codegraph.AnalyzeImpact(g, f.File, "", 3)
	if report.Level == "" || report.Level == codegraph.ImpactLow {
		return false, ""
	}
	return true, report.Diagram()
}
