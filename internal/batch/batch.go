// Package batch packs changed files into provider-sized review batches.
package batch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/tokenestimate"
)

// ErrInvalidBatchSize is returned when a configured batch size is
// non-positive or NaN.
var ErrInvalidBatchSize = errors.New("invalid batch size")

// Batch is one group of files to send to a provider together.
type Batch struct {
	Files  []domain.FileChange
	Tokens int
}

// Plan is the result of planBatches: the batches themselves plus a short
// human-readable classification of the packing outcome.
type Plan struct {
	Batches          []Batch
	AvgTokensPerBatch float64
	Reason           string
}

// PlanBatches sorts files by estimated tokens descending and greedily
// packs them into batches whose running token total stays at or below
// targetTokens*1.2 and whose file count stays at or below
// maxFilesPerBatch. A single file whose own estimate exceeds the target
// becomes its own batch.
func PlanBatches(files []domain.FileChange, targetTokens int, maxFilesPerBatch int) Plan {
	if len(files) == 0 {
		return Plan{Reason: "single batch"}
	}

	ceiling := int(float64(targetTokens) * 1.2)

	sorted := make([]domain.FileChange, len(files))
	copy(sorted, files)
	estimates := make(map[string]int, len(sorted))
	for _, f := range sorted {
		estimates[f.Filename] = tokenestimate.EstimateFile(f)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return estimates[sorted[i].Filename] > estimates[sorted[j].Filename]
	})

	var batches []Batch
	var current Batch
	oversizedCount := 0

	flush := func() {
		if len(current.Files) > 0 {
			batches = append(batches, current)
			current = Batch{}
		}
	}

	for _, f := range sorted {
		tokens := estimates[f.Filename]

		if tokens > ceiling {
			flush()
			batches = append(batches, Batch{Files: []domain.FileChange{f}, Tokens: tokens})
			oversizedCount++
			continue
		}

		wouldExceedTokens := current.Tokens+tokens > ceiling
		wouldExceedFiles := len(current.Files)+1 > maxFilesPerBatch && maxFilesPerBatch > 0

		if len(current.Files) > 0 && (wouldExceedTokens || wouldExceedFiles) {
			flush()
		}

		current.Files = append(current.Files, f)
		current.Tokens += tokens
	}
	flush()

	return Plan{
		Batches:           batches,
		AvgTokensPerBatch: avgTokens(batches),
		Reason:            classify(batches, oversizedCount, maxFilesPerBatch),
	}
}

func avgTokens(batches []Batch) float64 {
	if len(batches) == 0 {
		return 0
	}
	total := 0
	for _, b := range batches {
		total += b.Tokens
	}
	return float64(total) / float64(len(batches))
}

func classify(batches []Batch, oversizedCount, maxFilesPerBatch int) string {
	if len(batches) <= 1 {
		return "single batch"
	}
	if oversizedCount > 0 {
		return "large files dominant"
	}
	cappedByFiles := false
	for _, b := range batches {
		if maxFilesPerBatch > 0 && len(b.Files) == maxFilesPerBatch {
			cappedByFiles = true
			break
		}
	}
	if cappedByFiles {
		return "capped by maxFiles"
	}
	return "many small files"
}

// SizeConfig supplies the batch-size knobs an Orchestrator needs to
// resolve a per-provider batch size.
type SizeConfig struct {
	DefaultBatchSize  int
	MaxBatchSize      int
	ProviderOverrides map[string]int
}

// GetBatchSize returns the minimum of cfg.DefaultBatchSize,
// cfg.MaxBatchSize, and any override in cfg.ProviderOverrides matched
// either by exact provider name or by prefix (so an override keyed
// "openrouter" matches "openrouter/model-x").
func GetBatchSize(providerName string, cfg SizeConfig) (int, error) {
	candidates := []int{cfg.DefaultBatchSize, cfg.MaxBatchSize}

	if size, ok := cfg.ProviderOverrides[providerName]; ok {
		candidates = append(candidates, size)
	} else {
		for prefix, size := range cfg.ProviderOverrides {
			if strings.HasPrefix(providerName, prefix) {
				candidates = append(candidates, size)
				break
			}
		}
	}

	min := candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}

	if min <= 0 {
		return 0, fmt.Errorf("%w: resolved size %d for provider %q", ErrInvalidBatchSize, min, providerName)
	}

	return min, nil
}
