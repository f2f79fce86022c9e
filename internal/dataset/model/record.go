package model

import "strings"

// Row maps a column name to a scalar cell value. A nil value is the null
// sentinel: rows always carry every column key.
type Row map[string]any

// DatasetRecord is the canonical form every dataset descriptor is normalized into.
type DatasetRecord struct {
	// ID is the engine dataset key: explicit id, else table name, else script hash.
	ID string `json:"id"`
	// SourceID is the explicit id found in the descriptor, if any.
	SourceID    string `json:"source_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject,omitempty"`

	// SQLScript has blank lines removed and lines trimmed.
	SQLScript string `json:"sql_script,omitempty"`
	// InterpreterScript keeps its original formatting.
	InterpreterScript string `json:"interpreter_script,omitempty"`

	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	RawCSV  string   `json:"raw_csv,omitempty"`

	TableName  string   `json:"table_name,omitempty"`
	TableNames []string `json:"table_names,omitempty"`
}

// HasRows reports whether the record carries at least one data row.
func (r *DatasetRecord) HasRows() bool {
	return r != nil && len(r.Rows) > 0
}

// Usable reports whether the record can produce a table or a frame.
func (r *DatasetRecord) Usable() bool {
	if r == nil {
		return false
	}
	return len(r.Rows) > 0 || r.SQLScript != "" || r.RawCSV != "" || r.InterpreterScript != ""
}

// DisplayName returns the human-facing name of the record.
func (r *DatasetRecord) DisplayName() string {
	if r == nil {
		return ""
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	if r.TableName != "" {
		return r.TableName
	}
	return "Dataset"
}

// DeclaredTables returns the declared physical table names, primary first.
func (r *DatasetRecord) DeclaredTables() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, 1+len(r.TableNames))
	seen := make(map[string]struct{}, 1+len(r.TableNames))
	for _, name := range append([]string{r.TableName}, r.TableNames...) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// DatasetVariant is one selectable table view of a record.
type DatasetVariant struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	TableName string        `json:"table_name,omitempty"`
	Record    DatasetRecord `json:"-"`
}
