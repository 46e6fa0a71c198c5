// Command reviewd is a thin entrypoint: it loads configuration, wires the
// orchestrator's collaborators, runs one review over a base/head ref pair,
// and writes the configured output artifacts. Full CLI ergonomics (GitHub
// posting, interactive planning, verification-depth flags) live outside
// this module's scope; this binary exists to exercise the orchestrator
// end to end from a local git checkout.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	gitengine "github.com/mprcore/reviewd/internal/adapter/git"
	"github.com/mprcore/reviewd/internal/adapter/llm/anthropic"
	"github.com/mprcore/reviewd/internal/adapter/llm/gemini"
	llmhttp "github.com/mprcore/reviewd/internal/adapter/llm/http"
	"github.com/mprcore/reviewd/internal/adapter/llm/ollama"
	"github.com/mprcore/reviewd/internal/adapter/llm/openai"
	"github.com/mprcore/reviewd/internal/adapter/llm/static"
	"github.com/mprcore/reviewd/internal/adapter/observability"
	jsonout "github.com/mprcore/reviewd/internal/adapter/output/json"
	"github.com/mprcore/reviewd/internal/adapter/output/markdown"
	"github.com/mprcore/reviewd/internal/adapter/output/sarif"
	"github.com/mprcore/reviewd/internal/adapter/store/sqlite"
	"github.com/mprcore/reviewd/internal/batch"
	"github.com/mprcore/reviewd/internal/cache/graph"
	"github.com/mprcore/reviewd/internal/cache/incremental"
	"github.com/mprcore/reviewd/internal/cache/result"
	"github.com/mprcore/reviewd/internal/codegraph"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/mprcore/reviewd/internal/cost"
	"github.com/mprcore/reviewd/internal/determinism"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/executor"
	"github.com/mprcore/reviewd/internal/orchestrator"
	"github.com/mprcore/reviewd/internal/pipeline"
	"github.com/mprcore/reviewd/internal/prompt"
	"github.com/mprcore/reviewd/internal/provider"
	"github.com/mprcore/reviewd/internal/reliability"
	"github.com/mprcore/reviewd/internal/staticanalysis"
	"github.com/mprcore/reviewd/internal/store"
	"github.com/mprcore/reviewd/internal/usecase/skip"
	"github.com/mprcore/reviewd/internal/usecase/triage"
)

// healthCheckTimeout bounds each provider's pre-dispatch health probe.
// Not yet exposed as a config knob; see DESIGN.md.
const healthCheckTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseRef  string
		headRef  string
		prNumber int
		prTitle  string
		prAuthor string
		prDraft  bool
		uncommit bool
	)

	root := &cobra.Command{
		Use:   "reviewd",
		Short: "Run a multi-provider LLM code review over a git diff",
	}

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Review the diff between two refs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runReview(ctx, reviewOptions{
				baseRef: baseRef, headRef: headRef, prNumber: prNumber,
				prTitle: prTitle, prAuthor: prAuthor, prDraft: prDraft,
				includeUncommitted: uncommit,
			})
		},
	}
	reviewCmd.Flags().StringVar(&baseRef, "base", "HEAD~1", "base git ref")
	reviewCmd.Flags().StringVar(&headRef, "head", "HEAD", "head git ref")
	reviewCmd.Flags().IntVar(&prNumber, "pr", 0, "PR number, used for cache keys and persisted history")
	reviewCmd.Flags().StringVar(&prTitle, "title", "", "PR title, passed through to prompts")
	reviewCmd.Flags().StringVar(&prAuthor, "author", "", "PR author")
	reviewCmd.Flags().BoolVar(&prDraft, "draft", false, "treat the PR as a draft (subject to skip.skipDrafts)")
	reviewCmd.Flags().BoolVar(&uncommit, "uncommitted", false, "include uncommitted working-tree changes in the diff")

	root.AddCommand(reviewCmd)
	return root
}

type reviewOptions struct {
	baseRef, headRef   string
	prNumber           int
	prTitle, prAuthor  string
	prDraft            bool
	includeUncommitted bool
}

func runReview(ctx context.Context, opts reviewOptions) error {
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "reviewd",
		EnvPrefix:   "REVIEWD",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	engine := gitengine.NewEngine(repoDir)

	pr, err := engine.LoadPRContext(ctx, opts.prNumber, opts.prTitle, "", opts.prAuthor, opts.prDraft, nil, opts.baseRef, opts.headRef, opts.includeUncommitted)
	if err != nil {
		return fmt.Errorf("load diff: %w", err)
	}

	deps, cleanup, err := buildDependencies(cfg, opts)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer cleanup()

	orchCfg := buildOrchestratorConfig(cfg)
	orch := orchestrator.New(orchCfg, deps)

	review, err := orch.Run(ctx, pr)
	if err != nil {
		return fmt.Errorf("run review: %w", err)
	}

	return writeArtifacts(ctx, cfg, pr, review)
}

// buildDependencies wires every orchestrator collaborator from cfg. The
// returned cleanup func closes anything that holds a file handle or
// network listener.
func buildDependencies(cfg config.Config, opts reviewOptions) (orchestrator.Dependencies, func(), error) {
	var closers []func() error

	cacheDir := cfg.Output.Directory
	if cacheDir == "" {
		cacheDir = ".reviewd-cache"
	}

	resultStore := result.New(filepath.Join(cacheDir, "results"), 7*24*time.Hour)
	graphStore := graph.New[*codegraph.Graph](filepath.Join(cacheDir, "graphs"), 30*24*time.Hour)
	incrementalStore := incremental.New(filepath.Join(cacheDir, "incremental"), time.Duration(cfg.Orchestrator.Incremental.CacheTTLDays)*24*time.Hour)

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	vcs := gitengine.NewEngine(repoDir)

	httpLogger := llmhttp.NewDefaultLogger(logLevelFrom(cfg.Observability.Logging.Level), logFormatFrom(cfg.Observability.Logging.Format), cfg.Observability.Logging.RedactAPIKeys)
	reviewLogger := observability.NewReviewLogger(httpLogger)

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	pricing := llmhttp.NewDefaultPricing()

	providers := buildProviders(cfg, httpLogger, pricing)

	tracker := reliability.NewTracker(20, 30*time.Second)
	pool := provider.NewPool(tracker, 2, 4)
	costTracker := cost.NewTracker(cfg.Orchestrator.Dispatch.BudgetMaxUSD)
	exec := executor.New(pool, costTracker,
		nonZero(cfg.Orchestrator.Dispatch.ProviderMaxParallel, 4),
		nonZero(cfg.Orchestrator.Dispatch.ProviderRetries, 2),
		time.Duration(nonZero(cfg.Orchestrator.Dispatch.RunTimeoutSeconds, 60))*time.Second,
	)

	var historyStore store.Store
	if cfg.Store.Enabled {
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(cacheDir, "reviewd.db")
		}
		sqliteStore, err := sqlite.NewStore(path)
		if err != nil {
			return orchestrator.Dependencies{}, nil, fmt.Errorf("open store: %w", err)
		}
		historyStore = sqliteStore
		closers = append(closers, sqliteStore.Close)
	}

	promptBuilder := prompt.NewBuilder(cfg.Review.Instructions)
	if cfg.Determinism.Enabled && cfg.Determinism.UseSeed {
		promptBuilder.SetDeterminism(determinism.GenerateSeed(opts.baseRef, opts.headRef), cfg.Determinism.Temperature)
	}

	deps := orchestrator.Dependencies{
		GraphStore:       graphStore,
		ResultStore:      resultStore,
		IncrementalStore: incrementalStore,
		VCS:              vcs,
		GraphBuilder:     codegraph.NewBuilder(),
		Pool:             pool,
		Executor:         exec,
		Providers:        providers,
		CostTracker:      costTracker,
		PromptBuilder:    promptBuilder.Build,
		Logger:           reviewLogger,
		Metrics:          metrics,
		Store:            historyStore,
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Println("cleanup:", err)
			}
		}
	}
	return deps, cleanup, nil
}

// buildProviders constructs one executor.Provider per enabled entry in
// cfg.Providers, keyed by vendor name. An unrecognized key is skipped
// rather than failing the run: operators may list a provider the binary
// doesn't know about yet without blocking every other provider.
func buildProviders(cfg config.Config, logger llmhttp.Logger, pricing llmhttp.Pricing) []executor.Provider {
	var providers []executor.Provider
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch name {
		case "anthropic":
			providers = append(providers, anthropic.New(pc.Model, pc, cfg.HTTP).WithObservability(logger, nil, pricing))
		case "openai":
			providers = append(providers, openai.New(pc.Model, pc, cfg.HTTP).WithObservability(logger, nil, pricing))
		case "gemini":
			providers = append(providers, gemini.New(pc.Model, pc, cfg.HTTP).WithObservability(logger, nil, pricing))
		case "ollama":
			providers = append(providers, ollama.New(pc.Model, pc, cfg.HTTP).WithObservability(logger, nil, pricing))
		case "static":
			providers = append(providers, static.New(pc.Model))
		}
	}
	return providers
}

func buildOrchestratorConfig(cfg config.Config) orchestrator.Config {
	oc := cfg.Orchestrator
	return orchestrator.Config{
		Skip:    skipConfigFrom(oc.Skip),
		Trivial: trivialConfigFrom(oc.Trivial),
		Intensity: orchestrator.IntensityConfig{
			Rules:            intensityRulesFrom(oc.Intensity.Rules),
			DefaultIntensity: triage.Intensity(defaultString(oc.Intensity.DefaultIntensity, string(triage.IntensityStandard))),
		},
		GraphMaxDepth:      oc.Graph.MaxDepth,
		GraphEnabled:       oc.Graph.Enabled,
		BatchSize:          batch.SizeConfig{DefaultBatchSize: 8, MaxBatchSize: 20},
		HealthCheckTimeout: healthCheckTimeout,
		Consensus: pipeline.ConsensusConfig{
			InlineMinSeverity:  domain.Severity(defaultString(oc.Consensus.InlineMinSeverity, string(domain.SeverityMinor))),
			InlineMinAgreement: nonZero(oc.Consensus.InlineMinAgreement, 1),
		},
		Quiet:                   pipeline.QuietFilter{MinConfidence: 0.5},
		IncrementalEnabled:      oc.Incremental.Enabled,
		IncrementalCacheTTLDays: nonZero(oc.Incremental.CacheTTLDays, 7),
		StaticAnalysis: staticanalysis.Config{
			EnableASTAnalysis: true,
			EnableSecurity:    true,
			EnableTestHints:   true,
			EnableAIDetection: false,
		},
	}
}

func skipConfigFrom(sc config.SkipConfig) skip.Config {
	return skip.Config{
		SkipDrafts:      sc.SkipDrafts,
		SkipBots:        sc.SkipBots,
		BotPatterns:     sc.BotPatterns,
		SkipLabels:      sc.SkipLabels,
		MinChangedLines: sc.MinChangedLines,
		MaxChangedFiles: sc.MaxChangedFiles,
	}
}

func trivialConfigFrom(tc config.TrivialConfig) triage.Config {
	return triage.Config{
		IgnoreLockFiles:      tc.IgnoreLockFiles,
		IgnoreDocsOnly:       tc.IgnoreDocsOnly,
		IgnoreFormattingOnly: tc.IgnoreFormattingOnly,
		IgnoreTestFixtures:   tc.IgnoreTestFixtures,
		IgnoreConfigOnly:     tc.IgnoreConfigOnly,
		IgnoreBuildArtifacts: tc.IgnoreBuildArtifacts,
		CustomTrivialGlobs:   tc.CustomTrivialGlobs,
	}
}

func intensityRulesFrom(rules []config.IntensityRuleConfig) []triage.IntensityRule {
	out := make([]triage.IntensityRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, triage.IntensityRule{Pattern: r.Pattern, Intensity: triage.Intensity(r.Intensity)})
	}
	return out
}

func writeArtifacts(ctx context.Context, cfg config.Config, pr domain.PRContext, review domain.Review) error {
	outputDir := cfg.Output.Directory
	if outputDir == "" {
		outputDir = "."
	}
	nowFunc := func() string { return time.Now().UTC().Format("20060102T150405Z") }

	repoName := filepath.Base(cfg.Git.RepositoryDir)
	if repoName == "" || repoName == "." {
		repoName = "repository"
	}

	jsonPath, err := jsonout.NewWriter(nowFunc).Write(ctx, domain.JSONArtifact{
		OutputDir: outputDir, Repository: repoName, BaseRef: pr.BaseSHA, TargetRef: pr.HeadSHA, Review: review,
	})
	if err != nil {
		return fmt.Errorf("write json artifact: %w", err)
	}
	fmt.Println("json:", jsonPath)

	mdPath, err := markdown.NewWriter(nowFunc).Write(ctx, domain.MarkdownArtifact{
		OutputDir: outputDir, Repository: repoName, BaseRef: pr.BaseSHA, TargetRef: pr.HeadSHA, Review: review,
	})
	if err != nil {
		return fmt.Errorf("write markdown artifact: %w", err)
	}
	fmt.Println("markdown:", mdPath)

	sarifPath, err := sarif.NewWriter(nowFunc).Write(ctx, domain.SARIFArtifact{
		OutputDir: outputDir, Repository: repoName, BaseRef: pr.BaseSHA, TargetRef: pr.HeadSHA, Review: review,
	})
	if err != nil {
		return fmt.Errorf("write sarif artifact: %w", err)
	}
	fmt.Println("sarif:", sarifPath)

	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reviewd"))
	}
	return paths
}

func logLevelFrom(level string) llmhttp.LogLevel {
	switch level {
	case "debug":
		return llmhttp.LogLevelDebug
	case "error":
		return llmhttp.LogLevelError
	default:
		return llmhttp.LogLevelInfo
	}
}

func logFormatFrom(format string) llmhttp.LogFormat {
	if format == "json" {
		return llmhttp.LogFormatJSON
	}
	return llmhttp.LogFormatHuman
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
