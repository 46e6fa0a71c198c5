package pipeline

import "strings"

// suggestionSanityChars are the characters whose presence marks a
// suggestion as plausibly containing actual code rather than prose.
const suggestionSanityChars = "{}()[];=<>:"

// maxSuggestionLines rejects suggestions sprawling well past a single
// reviewable code block.
const maxSuggestionLines = 50

// SanitizeSuggestion trims s and applies the suggestion sanity check: a
// suggestion is rejected (ok=false) if it's empty after trimming, spans
// more than 50 lines, or contains none of "{}()[];=<>:" — a rough signal
// that it's prose rather than a concrete code change. The trimmed text is
// returned unchanged otherwise.
func SanitizeSuggestion(suggestion string) (s string, ok bool) {
	trimmed := strings.TrimSpace(suggestion)
	if trimmed == "" {
		return "", false
	}

	if strings.Count(trimmed, "\n")+1 > maxSuggestionLines {
		return "", false
	}

	if !strings.ContainsAny(trimmed, suggestionSanityChars) {
		return "", false
	}

	return trimmed, true
}
