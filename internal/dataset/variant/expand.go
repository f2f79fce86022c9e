// Package variant expands a dataset record into one selectable variant per
// physical table.
package variant

import (
	"strings"

	"practicelab/internal/dataset/model"
	"practicelab/internal/dataset/script"
)

const idSeparator = "::"

// CandidateTables returns the table names a record is known to produce.
// Tables mapped by the engine after execution win. Otherwise names inferred
// from the setup script are used, and the declared table names only when
// inference finds nothing.
func CandidateTables(rec *model.DatasetRecord, mapped []string) []string {
	if names := dedupe(mapped); len(names) > 0 {
		return names
	}
	if rec == nil {
		return nil
	}
	if names := dedupe(script.ExtractTableNames(rec.SQLScript)); len(names) > 0 {
		return names
	}
	return rec.DeclaredTables()
}

// Expand produces the variants of rec. With no candidate table there is one
// variant named after the record; with one candidate the variant keeps the
// record's display name; with several, each variant is labeled by its table.
// Variants whose labels differ only by case or surrounding whitespace collapse
// into the first.
func Expand(rec *model.DatasetRecord, mapped []string) []model.DatasetVariant {
	if rec == nil {
		return nil
	}
	tables := CandidateTables(rec, mapped)
	switch len(tables) {
	case 0:
		return []model.DatasetVariant{{ID: rec.ID, Label: rec.DisplayName(), Record: *rec}}
	case 1:
		label := strings.TrimSpace(rec.Name)
		if label == "" {
			label = tables[0]
		}
		return []model.DatasetVariant{newVariant(rec, tables[0], label)}
	}

	out := make([]model.DatasetVariant, 0, len(tables))
	seen := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		key := strings.ToLower(strings.TrimSpace(table))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, newVariant(rec, table, table))
	}
	return out
}

// ExpandAll expands every record, looking mapped tables up by record id.
func ExpandAll(recs []*model.DatasetRecord, mapped func(id string) []string) []model.DatasetVariant {
	var out []model.DatasetVariant
	for _, rec := range recs {
		var tables []string
		if mapped != nil && rec != nil {
			tables = mapped(rec.ID)
		}
		out = append(out, Expand(rec, tables)...)
	}
	return out
}

// ID builds the variant id for a table of a record.
func ID(recordID, table string) string {
	return recordID + idSeparator + table
}

// SplitID splits a variant id into record id and table name.
func SplitID(id string) (recordID, table string) {
	if i := strings.LastIndex(id, idSeparator); i >= 0 {
		return id[:i], id[i+len(idSeparator):]
	}
	return id, ""
}

func newVariant(rec *model.DatasetRecord, table, label string) model.DatasetVariant {
	return model.DatasetVariant{
		ID:        ID(rec.ID, table),
		Label:     label,
		TableName: table,
		Record:    *rec,
	}
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
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
