package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine performs regex-based secret detection and redaction.
type Engine struct {
	patterns []namedPattern
}

// namedPattern pairs a compiled secret regex with a human-readable kind,
// so callers that need to report *what* was found (not just redact it) have
// something to put in a message.
type namedPattern struct {
	kind string
	re   *regexp.Regexp
}

// SecretMatch is one secret detected by FindSecrets.
type SecretMatch struct {
	Kind  string
	Match string
}

// NewEngine creates a new redaction engine with default secret patterns.
func NewEngine() *Engine {
	return &Engine{
		patterns: defaultPatterns(),
	}
}

// FindSecrets scans a single line (or any short string) and returns every
// secret-shaped match found, tagged with the kind of pattern that matched.
// Unlike Redact, it does not mutate input — callers that need a Finding
// instead of a redacted string use this.
func (e *Engine) FindSecrets(input string) []SecretMatch {
	var matches []SecretMatch
	for _, p := range e.patterns {
		for _, m := range p.re.FindAllString(input, -1) {
			matches = append(matches, SecretMatch{Kind: p.kind, Match: m})
		}
	}
	return matches
}

// Redact scans input for secrets and replaces them with stable placeholders.
func (e *Engine) Redact(input string) (string, error) {
	result := input
	seenSecrets := make(map[string]string) // secret -> placeholder

	for _, pattern := range e.patterns {
		matches := pattern.re.FindAllString(result, -1)
		for _, match := range matches {
			// Skip if already processed
			if _, seen := seenSecrets[match]; seen {
				continue
			}

			// Generate stable placeholder based on secret hash
			placeholder := e.generatePlaceholder(match)
			seenSecrets[match] = placeholder
		}
	}

	// Replace all secrets with their placeholders
	for secret, placeholder := range seenSecrets {
		result = strings.ReplaceAll(result, secret, placeholder)
	}

	return result, nil
}

// IsRedacted checks if the content contains redaction placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

// generatePlaceholder creates a stable, unique placeholder for a secret.
func (e *Engine) generatePlaceholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	hashStr := hex.EncodeToString(hash[:])[:8]
	return fmt.Sprintf("<REDACTED:%s>", hashStr)
}

// defaultPatterns returns the default set of regex patterns for secret detection.
func defaultPatterns() []namedPattern {
	patterns := []namedPattern{
		{"openai-key", regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`)},
		{"anthropic-key", regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`)},
		{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
		{"aws-secret-key", regexp.MustCompile(`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`)},
		{"github-token", regexp.MustCompile(`gh[posr]_[a-zA-Z0-9]{20,}`)},
		{"google-api-key", regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)},
		{"jwt", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)},
		{"private-key", regexp.MustCompile(`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`)},
		{"slack-token", regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9\-]{10,}`)},
		{"bearer-token", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_\-\.]+`)},
	}
	return patterns
}
