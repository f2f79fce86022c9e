// Package tabular recognises delimited tables embedded in free text and parses
// them into rows.
package tabular

import (
	"regexp"
	"strings"
)

var (
	commentLine   = regexp.MustCompile(`^\s*(//|--|#)`)
	scriptKeyword = regexp.MustCompile(`(?i)^\s*(select|create|insert|update|delete|merge|with|drop|alter|table|into|values)\b`)
)

var candidateDelimiters = []rune{',', '\t', ';', '|'}

// ExtractTable returns the delimited table found in text.
//
// Leading blank and comment lines are skipped. The first remaining line with
// more than one cell is the header. Extraction fails when that header reads
// like a setup script statement, or when a skipped leading line opens one
// (keyword plus a parenthesis or terminating semicolon). Every non-blank line
// after the header is a data row. At least one data row is required.
func ExtractTable(text string) (string, bool) {
	lines := splitLines(text)
	meaningful := make([]string, 0, len(lines))
	headerFound := false
	var delim rune
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if headerFound {
			meaningful = append(meaningful, line)
			continue
		}
		if commentLine.MatchString(line) {
			continue
		}
		candidate := stripScriptWrapper(line)
		delim = DetectDelimiter(candidate)
		if countCells(candidate, delim) < 2 {
			if opensStatement(line) {
				return "", false
			}
			continue
		}
		if scriptKeyword.MatchString(candidate) {
			return "", false
		}
		headerFound = true
		meaningful = append(meaningful, line)
	}
	if !headerFound || len(meaningful) < 2 {
		return "", false
	}
	return strings.Join(meaningful, "\n"), true
}

func opensStatement(line string) bool {
	if !scriptKeyword.MatchString(line) {
		return false
	}
	trimmed := strings.TrimSpace(line)
	return strings.Contains(trimmed, "(") || strings.HasSuffix(trimmed, ";")
}

// DetectDelimiter picks the candidate delimiter occurring most often outside
// quotes in line. Comma wins ties and is the default.
func DetectDelimiter(line string) rune {
	best := ','
	bestCount := 0
	for _, d := range candidateDelimiters {
		if n := countCells(line, d) - 1; n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// countCells counts delimiter-separated cells, ignoring delimiters inside
// double-quoted sections.
func countCells(line string, delim rune) int {
	cells := 1
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			cells++
		}
	}
	return cells
}

// stripScriptWrapper removes a leading `name = """` wrapper so a table pasted
// inside a script string literal is measured by its own cells.
func stripScriptWrapper(line string) string {
	if !strings.Contains(line, `"""`) && !strings.Contains(line, "'''") {
		return line
	}
	line = assignmentPrefix.ReplaceAllString(line, "")
	return tripleQuoteOpen.ReplaceAllString(strings.TrimSpace(line), "")
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
