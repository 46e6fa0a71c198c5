package staticanalysis

import (
	"fmt"

	"github.com/mprcore/reviewd/internal/diffutil"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/redaction"
)

// secretScanEngine is shared across calls: its pattern list is built once
// and never mutated, so a package-level instance is safe for concurrent use
// the same way the teacher's other stateless helpers are.
var secretScanEngine = redaction.NewEngine()

// ScanSecrets runs the redaction engine's pattern set over every added
// line and reports one critical finding per match. It never reports the
// matched secret text itself in the Finding — only its kind and position —
// so the finding can't leak the credential it's warning about into a PR
// comment or a cached artifact.
func ScanSecrets(files []domain.FileChange) []domain.Finding {
	var findings []domain.Finding

	for _, f := range files {
		for _, added := range diffutil.MapAddedLines(f.Patch) {
			for _, m := range secretScanEngine.FindSecrets(added.Content) {
				findings = append(findings, domain.Finding{
					File:       f.Filename,
					Line:       added.NewLine,
					Severity:   domain.SeverityCritical,
					Title:      "possible secret committed",
					Message:    fmt.Sprintf("This line matches the pattern for a %s and should not be committed.", m.Kind),
					Suggestion: "Remove the secret and rotate it, then load it from an environment variable or secret manager instead.",
					Category:   "security",
				}.WithProvider("security"))
			}
		}
	}

	return findings
}
