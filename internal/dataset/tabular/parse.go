package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"practicelab/internal/dataset/model"
)

var (
	assignmentPrefix = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_.]*\s*=\s*`)
	tripleQuoteOpen  = regexp.MustCompile(`^[rRbBuUfF]?("""|''')`)
	tripleQuoteOnly  = regexp.MustCompile(`^\s*[)\s]*("""|''')[)\s;]*$`)
	tripleQuoteTail  = regexp.MustCompile(`("""|''')[)\s;]*$`)
)

// Table is a parsed delimited table.
type Table struct {
	Columns []string
	Rows    []model.Row
}

// ParseRows parses delimited text into rows keyed by the header cells.
// Every row carries every header key; missing cells are nil.
func ParseRows(text string) []model.Row {
	return Parse(text).Rows
}

// Parse parses delimited text with RFC 4180 quoting. The first header cell is
// cleaned of a script assignment prefix and triple quotes, so tables pasted
// from a notebook cell parse like plain CSV. Blank and triple-quote-only lines
// are skipped.
func Parse(text string) Table {
	lines := splitLines(text)
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || tripleQuoteOnly.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return Table{}
	}
	if last := kept[len(kept)-1]; len(kept) > 1 && !strings.HasPrefix(strings.TrimSpace(last), `"`) {
		kept[len(kept)-1] = tripleQuoteTail.ReplaceAllString(last, "")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(kept, "\n")))
	reader.Comma = DetectDelimiter(stripScriptWrapper(kept[0]))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Table{}
	}
	columns := cleanHeader(header)

	rows := make([]model.Row, 0, len(kept)-1)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed quoting: skip the record and keep going.
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		row := make(model.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}
}

func cleanHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, cell := range header {
		cell = strings.TrimPrefix(cell, "\ufeff")
		if i == 0 {
			cell = assignmentPrefix.ReplaceAllString(cell, "")
			cell = tripleQuoteOpen.ReplaceAllString(strings.TrimSpace(cell), "")
		}
		cell = strings.TrimSpace(strings.Trim(strings.TrimSpace(cell), `"`))
		if cell == "" {
			cell = fmt.Sprintf("column_%d", i+1)
		}
		seen[cell]++
		if n := seen[cell]; n > 1 {
			cell = fmt.Sprintf("%s_%d", cell, n)
		}
		columns[i] = cell
	}
	return columns
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
