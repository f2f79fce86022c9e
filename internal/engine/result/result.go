// Package result holds the execution result shapes returned to learners.
package result

import "encoding/json"

// QueryResult is either a tabular result or an error message.
type QueryResult struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Error     string
}

// Failed reports whether the result carries an error.
func (r QueryResult) Failed() bool {
	return r.Error != ""
}

// QueryError builds an error result.
func QueryError(msg string) QueryResult {
	return QueryResult{Error: msg}
}

func (r QueryResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	columns, rows := r.Columns, r.Rows
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return json.Marshal(struct {
		Columns   []string `json:"columns"`
		Rows      [][]any  `json:"rows"`
		Truncated bool     `json:"truncated,omitempty"`
	}{columns, rows, r.Truncated})
}

// ScriptResult is either captured interpreter output or an error message.
type ScriptResult struct {
	Output string
	Error  string
}

func (r ScriptResult) Failed() bool {
	return r.Error != ""
}

// ScriptError builds an error result.
func ScriptError(msg string) ScriptResult {
	return ScriptResult{Error: msg}
}

func (r ScriptResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	return json.Marshal(struct {
		Output string `json:"output"`
	}{r.Output})
}
