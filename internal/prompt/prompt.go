// Package prompt renders the text sent to one LLM provider for one batch
// of files, the orchestrator.PromptBuilder the ten-step pipeline calls at
// dispatch time. Grounded on the teacher's
// internal/usecase/review/prompt_builder.go: code diff first (LLMs show
// primacy bias), background context after, a strict JSON schema last.
package prompt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/usecase/triage"
)

// Builder renders provider-specific or default templates over a PR's
// changed files. The zero value is usable; SetProviderTemplate overrides
// the default for one provider name.
type Builder struct {
	Instructions      string
	providerTemplates map[string]string
	hasSeed           bool
	seed              uint64
	temperature       float64
}

// NewBuilder constructs a Builder. instructions are the project's custom
// review instructions (config.ReviewConfig.Instructions), appended to
// every prompt regardless of provider.
func NewBuilder(instructions string) *Builder {
	return &Builder{Instructions: instructions, providerTemplates: make(map[string]string)}
}

// SetProviderTemplate overrides the default template for one provider.
func (b *Builder) SetProviderTemplate(providerName, templateText string) {
	if b.providerTemplates == nil {
		b.providerTemplates = make(map[string]string)
	}
	b.providerTemplates[providerName] = templateText
}

// SetDeterminism records a sampling seed and temperature, derived once per
// run (config.DeterminismConfig.UseSeed), so every provider asked to
// review this run is nudged toward the same low-variance output. The
// teacher's per-call SeedGenerator becomes a one-time value here since a
// single Builder already covers one base/head pair for its whole run.
func (b *Builder) SetDeterminism(seed uint64, temperature float64) {
	b.hasSeed = true
	b.seed = seed
	b.temperature = temperature
}

// Build renders the prompt for one batch of files dispatched to
// providerName, matching orchestrator.PromptBuilder's signature.
func (b *Builder) Build(pr domain.PRContext, files []domain.FileChange, providerName string, intensity map[string]triage.Intensity) string {
	templateText := defaultTemplate
	if b.providerTemplates != nil {
		if custom, ok := b.providerTemplates[providerName]; ok {
			templateText = custom
		}
	}

	data := templateData{
		Title:              pr.Title,
		Body:                pr.Body,
		BaseRef:            pr.BaseSHA,
		TargetRef:          pr.HeadSHA,
		CustomInstructions: b.Instructions,
		Intensity:          string(dominantIntensity(files, intensity)),
		Diff:               formatDiff(files),
		ChangedPaths:       paths(files),
		Determinism:        determinismNote(b.hasSeed, b.seed, b.temperature),
	}

	tmpl, err := template.New("prompt").Funcs(template.FuncMap{"join": strings.Join}).Parse(templateText)
	if err != nil {
		return fallbackPrompt(data)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fallbackPrompt(data)
	}
	return buf.String()
}

type templateData struct {
	Title              string
	Body               string
	BaseRef            string
	TargetRef          string
	CustomInstructions string
	Intensity          string
	Diff               string
	ChangedPaths       []string
	Determinism        string
}

// determinismNote renders a one-line instruction asking the provider to
// hold sampling steady across repeated runs of the same diff, empty when
// no seed was configured (config.DeterminismConfig.UseSeed == false).
func determinismNote(hasSeed bool, seed uint64, temperature float64) string {
	if !hasSeed {
		return ""
	}
	return fmt.Sprintf("For reproducibility, sample as close to deterministic as your API allows: temperature %.2f, seed %d.", temperature, seed)
}

// dominantIntensity returns the most thorough intensity assigned to any
// file in the batch, so a "thorough" file pulled into a shared batch still
// gets a depth-appropriate prompt.
func dominantIntensity(files []domain.FileChange, intensity map[string]triage.Intensity) triage.Intensity {
	best := triage.IntensityLight
	rank := map[triage.Intensity]int{triage.IntensityLight: 0, triage.IntensityStandard: 1, triage.IntensityThorough: 2}
	for _, f := range files {
		if in, ok := intensity[f.Filename]; ok {
			if rank[in] > rank[best] {
				best = in
			}
		}
	}
	return best
}

func paths(files []domain.FileChange) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Filename)
	}
	return out
}

// formatDiff renders a batch of FileChanges as readable patch text, source
// files first and documentation last so the model prioritizes code over
// prose (mirrors the teacher's fileTypePriority sort).
func formatDiff(files []domain.FileChange) string {
	if len(files) == 0 {
		return "(no changes)"
	}
	sorted := make([]domain.FileChange, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return fileTypePriority(sorted[i].Filename) < fileTypePriority(sorted[j].Filename)
	})

	var buf bytes.Buffer
	for _, f := range sorted {
		fmt.Fprintf(&buf, "File: %s (%s)\n", f.Filename, f.Status)
		if f.Patch != "" {
			buf.WriteString(f.Patch)
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

func fileTypePriority(path string) int {
	lower := strings.ToLower(path)
	for _, ext := range []string{".go", ".py", ".js", ".ts", ".tsx", ".jsx", ".rs", ".java", ".c", ".cpp", ".rb"} {
		if strings.HasSuffix(lower, ext) {
			return 0
		}
	}
	if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
		return 1
	}
	for _, ext := range []string{".yaml", ".yml", ".json", ".toml", ".ini"} {
		if strings.HasSuffix(lower, ext) {
			return 2
		}
	}
	if strings.HasSuffix(lower, ".md") || strings.Contains(lower, "docs/") {
		return 4
	}
	return 3
}

// fallbackPrompt is used if template parsing ever fails (e.g. a malformed
// SetProviderTemplate override), so a broken template degrades the prompt
// rather than dropping the review entirely.
func fallbackPrompt(data templateData) string {
	return fmt.Sprintf("Review this code change (%s -> %s):\n\n%s\n\n%s", data.BaseRef, data.TargetRef, data.Diff, jsonSchemaInstructions)
}

const jsonSchemaInstructions = `Respond with a single JSON object matching this schema:
{
  "summary": "one to three sentence summary",
  "findings": [
    {
      "File": "path/to/file.go",
      "Line": 42,
      "Severity": "critical|major|minor",
      "Title": "short title",
      "Message": "what's wrong and why",
      "Suggestion": "actionable fix",
      "Category": "security|bug|performance|maintainability|style"
    }
  ]
}
If there are no issues, return {"summary": "No issues found.", "findings": []}.`

const defaultTemplate = `You are an expert software engineer performing a code review.
Your PRIMARY task is to review the CODE CHANGES below.

## Code Changes to Review (PRIMARY FOCUS)

Base: {{.BaseRef}}  Target: {{.TargetRef}}
Review intensity: {{.Intensity}}
{{if .ChangedPaths}}Files in this batch: {{join .ChangedPaths ", "}}{{end}}

{{.Diff}}

{{if .CustomInstructions}}
## Review Instructions
{{.CustomInstructions}}
{{end}}
{{if .Determinism}}
{{.Determinism}}
{{end}}

## PR Context
Title: {{.Title}}
{{if .Body}}{{.Body}}{{end}}

## Required Output Format

` + "```" + `json
{
  "summary": "one to three sentence summary",
  "findings": [
    {
      "File": "path/to/file.go",
      "Line": 42,
      "Severity": "critical|major|minor",
      "Title": "short title",
      "Message": "what's wrong and why",
      "Suggestion": "actionable fix",
      "Category": "security|bug|performance|maintainability|style"
    }
  ]
}
` + "```" + `

Rules:
- "summary" MUST be a string, not an object.
- "Severity" must be one of: critical, major, minor.
- If no issues found, return {"summary": "No issues found.", "findings": []}.
- Focus on the diff, not pre-existing code outside it.`
