package prep

import (
	"fmt"
	"strings"
)

// interpreterReserved are names that must not be shadowed by a dataset variable.
var interpreterReserved = map[string]struct{}{
	"and": {}, "break": {}, "do": {}, "else": {}, "elseif": {}, "end": {}, "false": {}, "for": {},
	"function": {}, "goto": {}, "if": {}, "in": {}, "local": {}, "nil": {}, "not": {}, "or": {},
	"repeat": {}, "return": {}, "then": {}, "true": {}, "until": {}, "while": {},
	"print": {}, "table": {}, "string": {}, "math": {}, "pairs": {}, "ipairs": {}, "type": {},
	"tostring": {}, "tonumber": {}, "error": {}, "assert": {}, "select": {}, "next": {}, "pcall": {},
	"xpcall": {}, "load": {}, "unpack": {}, "rawget": {}, "rawset": {}, "rawequal": {},
	"setmetatable": {}, "getmetatable": {}, "_g": {}, "_version": {},
}

// SanitizeIdentifier lower-cases name, replaces characters that are not
// ASCII letters, digits or underscore with '_' and prefixes a leading digit
// with '_'. It returns "" when nothing usable remains.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if strings.Trim(s, "_") == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// VariableName derives a unique interpreter variable for the dataset at index.
// used is updated with the returned name.
func VariableName(preferred string, index int, used map[string]struct{}) string {
	name := SanitizeIdentifier(preferred)
	if name == "" {
		name = fmt.Sprintf("dataset_%d", index+1)
	}
	if _, ok := interpreterReserved[name]; ok {
		name += "_data"
	}
	return uniqueName(name, used)
}

// uniqueName appends _2, _3, ... until name is not in used, then records it.
// Comparison is case-insensitive.
func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		if _, ok := used[strings.ToLower(candidate)]; !ok {
			break
		}
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}
