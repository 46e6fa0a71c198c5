// Package tokenestimate estimates token counts for diff content ahead of
// batching, preferring a real BPE tokenizer and falling back to a cheap
// length-based heuristic when the tokenizer can't be loaded.
package tokenestimate

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mprcore/reviewd/internal/domain"
)

var (
	encoder     *tiktoken.Tiktoken
	encoderOnce sync.Once
	encoderErr  error
)

func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoder, encoderErr
}

// EstimateText returns the estimated token count for arbitrary text, using
// the cl100k_base BPE encoder when available. On encoder-init failure it
// falls back to the diff-density heuristic (len/4.4), the same fallback
// shape the teacher's tokenizer.go uses with a plain len/4 ratio.
func EstimateText(text string) int {
	if text == "" {
		return 0
	}
	if enc, err := getEncoder(); err == nil {
		return len(enc.Encode(text, nil, nil))
	}
	return int(float64(len(text)) / 4.4)
}

// EstimateFile returns the estimated token count for one changed file: if
// its patch is present, tokens are estimated from patch text; otherwise
// they're derived from the change counts at 20 tokens/line, which is the
// fallback spec.md mandates for patches omitted by the diff provider
// (binary files, oversized diffs the upstream truncated).
func EstimateFile(f domain.FileChange) int {
	if f.Patch != "" {
		return EstimateText(f.Patch)
	}
	return (f.Additions + f.Deletions) * 20
}

// EstimateTotal sums EstimateFile across every file in files.
func EstimateTotal(files []domain.FileChange) int {
	total := 0
	for _, f := range files {
		total += EstimateFile(f)
	}
	return total
}
