package normalize

import (
	"regexp"
	"strings"
)

var (
	fenceLine     = regexp.MustCompile("^\\s*(```|~~~)[\\w+.#-]*\\s*$")
	sqlStatement  = regexp.MustCompile(`(?im)^\s*(create|insert|select|with|drop|alter|update|delete|pragma|begin|attach|replace)\b`)
	leadingJSONCh = regexp.MustCompile(`^\s*[\[{]`)
	scriptLine    = regexp.MustCompile(`(?m)^\s*(import\s+\w|from\s+[\w.]+\s+import\b|def\s+\w+\s*\(|print\s*\(|[A-Za-z_][\w.]*(\[[^\]]*\])?\s*=\s*\S)`)
)

// StripFences removes markdown code fence lines.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if fenceLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// CollapseSQL strips fences, trims every line and drops blank lines.
func CollapseSQL(text string) string {
	lines := strings.Split(StripFences(text), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// CleanInterpreterScript strips fences only. Indentation is significant in
// interpreter scripts and is kept as written.
func CleanInterpreterScript(text string) string {
	cleaned := StripFences(text)
	if strings.TrimSpace(cleaned) == "" {
		return ""
	}
	return cleaned
}

func looksLikeSQL(text string) bool {
	return sqlStatement.MatchString(text)
}

func looksLikeInterpreterScript(text string) bool {
	return scriptLine.MatchString(text)
}

func looksLikeJSON(text string) bool {
	return leadingJSONCh.MatchString(text)
}
