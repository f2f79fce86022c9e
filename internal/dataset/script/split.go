// Package script splits setup scripts into statements and infers the tables
// they create.
package script

import "strings"

type quoteMode int

const (
	modeNone quoteMode = iota
	modeSingle
	modeDouble
	modeBacktick
)

// SplitStatements splits script on semicolons that appear outside single,
// double and backtick quoted sections. Statements are trimmed and empty ones
// dropped; a trailing fragment without a terminator is kept.
func SplitStatements(script string) []string {
	var (
		statements []string
		buf        strings.Builder
		mode       = modeNone
	)
	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		buf.Reset()
	}

	for _, r := range script {
		switch mode {
		case modeNone:
			switch r {
			case '\'':
				mode = modeSingle
			case '"':
				mode = modeDouble
			case '`':
				mode = modeBacktick
			case ';':
				flush()
				continue
			}
		case modeSingle:
			if r == '\'' {
				mode = modeNone
			}
		case modeDouble:
			if r == '"' {
				mode = modeNone
			}
		case modeBacktick:
			if r == '`' {
				mode = modeNone
			}
		}
		buf.WriteRune(r)
	}
	flush()
	return statements
}

// StripComments removes `--` line comments and `/* */` block comments that
// appear outside quoted sections. Line structure is preserved.
func StripComments(script string) string {
	var (
		out  strings.Builder
		mode = modeNone
	)
	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if mode == modeNone {
			if r == '-' && i+1 < len(runes) && runes[i+1] == '-' {
				for i < len(runes) && runes[i] != '\n' {
					i++
				}
				if i < len(runes) {
					out.WriteRune('\n')
				}
				continue
			}
			if r == '/' && i+1 < len(runes) && runes[i+1] == '*' {
				i += 2
				for i < len(runes) && !(runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/') {
					if runes[i] == '\n' {
						out.WriteRune('\n')
					}
					i++
				}
				i++ // skip the closing '/'
				out.WriteRune(' ')
				continue
			}
		}
		switch {
		case mode == modeNone && r == '\'':
			mode = modeSingle
		case mode == modeNone && r == '"':
			mode = modeDouble
		case mode == modeNone && r == '`':
			mode = modeBacktick
		case mode == modeSingle && r == '\'',
			mode == modeDouble && r == '"',
			mode == modeBacktick && r == '`':
			mode = modeNone
		}
		out.WriteRune(r)
	}
	return out.String()
}

// Statements strips comments and splits script into executable statements.
func Statements(script string) []string {
	return SplitStatements(StripComments(script))
}
