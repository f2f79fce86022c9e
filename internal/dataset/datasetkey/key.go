// Package datasetkey derives the stable key that ties a dataset to the tables
// it produced inside an engine session.
package datasetkey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const hashPrefixLen = 16

// Inputs are the descriptor facts a key may be derived from.
type Inputs struct {
	ExplicitID string
	TableName  string
	Script     string
	RawCSV     string
	Name       string
	Text       string
	TableNames []string
	Columns    []string
}

// Key returns the engine dataset key. Priority: explicit id, physical table
// name (or the first declared table), whitespace-normalized setup script, raw
// tabular text, display name, free text, column list.
// Equal inputs always give equal keys and distinct scripts give distinct keys.
func Key(in Inputs) string {
	if id := strings.TrimSpace(in.ExplicitID); id != "" {
		return id
	}
	if table := strings.TrimSpace(in.TableName); table != "" {
		return "table:" + strings.ToLower(table)
	}
	for _, table := range in.TableNames {
		if table = strings.TrimSpace(table); table != "" {
			return "table:" + strings.ToLower(table)
		}
	}
	if script := collapseWhitespace(in.Script); script != "" {
		return "sql:" + digest(script)
	}
	if raw := collapseWhitespace(in.RawCSV); raw != "" {
		return "csv:" + digest(raw)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		return "name:" + digest(strings.ToLower(name))
	}
	if text := collapseWhitespace(in.Text); text != "" {
		return "text:" + digest(text)
	}
	cols := make([]string, 0, len(in.Columns))
	for _, c := range in.Columns {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, strings.ToLower(c))
		}
	}
	if len(cols) > 0 {
		return "columns:" + digest(strings.Join(cols, ","))
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashPrefixLen]
}
