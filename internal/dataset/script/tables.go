package script

import (
	"regexp"
	"sort"
	"strings"
)

const tableNamePattern = `(?:(?:"[^"]+"|` + "`[^`]+`" + `|\[[^\]]+\]|[A-Za-z_][\w$]*)\s*\.\s*)?` +
	`(?:"([^"]+)"|` + "`([^`]+)`" + `|\[([^\]]+)\]|([A-Za-z_][\w$]*))`

var tableCreators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcreate\s+(?:or\s+replace\s+)?(?:(?:temp|temporary)\s+)?table\s+(?:if\s+not\s+exists\s+)?` + tableNamePattern),
	regexp.MustCompile(`(?i)\bcreate\s+(?:or\s+replace\s+)?(?:(?:temp|temporary)\s+)?view\s+(?:if\s+not\s+exists\s+)?` + tableNamePattern),
	regexp.MustCompile(`(?i)\binsert\s+(?:or\s+\w+\s+)?into\s+` + tableNamePattern),
}

type nameMatch struct {
	pos  int
	name string
}

// ExtractTableNames returns the tables and views that script creates or
// inserts into, in order of first appearance. Comments are ignored and names
// are deduplicated case-sensitively. Quoting is removed.
func ExtractTableNames(script string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, stmt := range SplitStatements(StripComments(script)) {
		var matches []nameMatch
		for _, re := range tableCreators {
			for _, m := range re.FindAllStringSubmatchIndex(stmt, -1) {
				if name, ok := capturedName(stmt, m); ok {
					matches = append(matches, nameMatch{pos: m[0], name: name})
				}
			}
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })
		for _, m := range matches {
			if _, ok := seen[m.name]; ok {
				continue
			}
			seen[m.name] = struct{}{}
			names = append(names, m.name)
		}
	}
	return names
}

func capturedName(stmt string, loc []int) (string, bool) {
	// Groups 1-4 hold the double-quoted, backtick, bracketed and bare forms.
	for g := 1; g <= 4; g++ {
		start, end := loc[2*g], loc[2*g+1]
		if start < 0 {
			continue
		}
		if name := strings.TrimSpace(stmt[start:end]); name != "" {
			return name, true
		}
	}
	return "", false
}
