// Package preview resolves and caches the capped table samples shown for a
// dataset variant.
package preview

import (
	"practicelab/internal/dataset/model"
)

// MaxRows caps every preview.
const MaxRows = 20

// Preview is a rectangular sample ready for grid rendering.
type Preview struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Empty reports whether the preview has no columns.
func (p Preview) Empty() bool {
	return len(p.Columns) == 0
}

// FromRows converts record rows into a preview of at most MaxRows rows.
// Missing cells become nil so every row has one cell per column.
func FromRows(columns []string, rows []model.Row) Preview {
	p := Preview{Columns: append([]string{}, columns...), Rows: [][]any{}}
	for i, row := range rows {
		if i == MaxRows {
			p.Truncated = true
			break
		}
		cells := make([]any, len(columns))
		for j, c := range columns {
			cells[j] = row[c]
		}
		p.Rows = append(p.Rows, cells)
	}
	return p
}

// FromGrid caps an already rectangular result.
func FromGrid(columns []string, rows [][]any, truncated bool) Preview {
	p := Preview{Columns: append([]string{}, columns...), Rows: [][]any{}, Truncated: truncated}
	for i, row := range rows {
		if i == MaxRows {
			p.Truncated = true
			break
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}
