package parse

import (
	"regexp"
	"strings"
)

// RegexExtractor is the language-agnostic fallback used for any file
// extension without a registered tree-sitter grammar, or when the
// tree-sitter extractor errors on a file it does claim to support.
type RegexExtractor struct{}

var (
	goFuncPattern   = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	typeDeclPattern = regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+(struct|interface)\b`)
	importPattern   = regexp.MustCompile(`"([^"]+)"`)
	callPattern     = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)\s*\(`)
)

func (RegexExtractor) Extract(filePath, snippet string) (Extraction, error) {
	var ext Extraction
	lines := strings.Split(snippet, "\n")

	known := map[string]bool{}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		lineNum := i + 1

		if m := goFuncPattern.FindStringSubmatch(trimmed); m != nil {
			ext.Defs = append(ext.Defs, Definition{Name: m[1], Kind: DefFunction, Line: lineNum, Exported: isExported(m[1])})
			known[m[1]] = true
			continue
		}

		if m := typeDeclPattern.FindStringSubmatch(trimmed); m != nil {
			kind := DefClass
			if m[2] == "interface" {
				kind = DefInterface
			}
			ext.Defs = append(ext.Defs, Definition{Name: m[1], Kind: kind, Line: lineNum, Exported: isExported(m[1])})
			continue
		}

		if strings.HasPrefix(trimmed, "import ") || (trimmed == "(" && i > 0 && strings.Contains(lines[i-1], "import")) {
			if m := importPattern.FindStringSubmatch(trimmed); m != nil {
				ext.Imports = append(ext.Imports, m[1])
			}
			continue
		}
		if m := importPattern.FindStringSubmatch(trimmed); m != nil && looksLikeBareImportLine(trimmed) {
			ext.Imports = append(ext.Imports, m[1])
		}
	}

	currentCaller := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := goFuncPattern.FindStringSubmatch(trimmed); m != nil {
			currentCaller = m[1]
			continue
		}
		if currentCaller == "" {
			continue
		}
		for _, m := range callPattern.FindAllStringSubmatch(trimmed, -1) {
			name := m[1]
			if isGoKeyword(name) || name == currentCaller {
				continue
			}
			simple := name
			if idx := strings.LastIndex(name, "."); idx >= 0 {
				simple = name[idx+1:]
			}
			if known[simple] {
				ext.Calls = append(ext.Calls, CallRef{CallerName: currentCaller, CalleeName: simple})
			} else {
				ext.Unresolved = append(ext.Unresolved, UnresolvedCall{CallerName: currentCaller, CalleeName: name})
			}
		}
	}

	return ext, nil
}

// looksLikeBareImportLine reports whether a single quoted-path line
// outside an explicit "import" block is itself a standalone import
// statement (e.g. `import "fmt"` already matched above, or a line inside
// an import(...) block which callers detect by surrounding context).
func looksLikeBareImportLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && !strings.Contains(trimmed, " ")
}

func isGoKeyword(name string) bool {
	switch name {
	case "if", "for", "switch", "return", "range", "func", "go", "defer",
		"select", "case", "var", "const", "type", "package", "import",
		"make", "new", "append", "len", "cap", "panic", "recover":
		return true
	}
	return false
}
