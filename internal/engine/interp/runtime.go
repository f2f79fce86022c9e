// Package interp hosts the embedded script interpreter that datasets are
// bound into as frames.
package interp

import (
	"context"

	"practicelab/internal/dataset/model"
	"practicelab/internal/engine/result"
)

// Frame is the columnar dataset shape handed to the interpreter.
type Frame struct {
	Columns []string
	Rows    []model.Row
}

// NewFrame builds a frame from a record's rows.
func NewFrame(columns []string, rows []model.Row) Frame {
	return Frame{Columns: append([]string(nil), columns...), Rows: rows}
}

// Runtime is a session-scoped interpreter.
type Runtime interface {
	// Bind exposes frame under the global variable. Rebinding replaces it.
	Bind(ctx context.Context, variable string, frame Frame) error
	// Run executes code. Script failures are reported in the result; the
	// error is reserved for an unusable runtime.
	Run(ctx context.Context, code string) (result.ScriptResult, error)
	Close()
}
