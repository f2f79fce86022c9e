// Package normalize converts heterogeneous dataset descriptors into canonical
// DatasetRecords.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"practicelab/internal/dataset/datasetkey"
	"practicelab/internal/dataset/model"
	"practicelab/internal/dataset/tabular"
)

// Normalize converts one descriptor into a record. Descriptors may be plain
// text, *model.Object, map[string]any or a list (the first usable entry wins).
// It returns nil only when the descriptor carries no usable signal at all.
// Malformed input never panics or errors.
func Normalize(descriptor any) *model.DatasetRecord {
	if recs := NormalizeAll(descriptor); len(recs) > 0 {
		return recs[0]
	}
	return nil
}

// NormalizeAll flattens lists of descriptors and normalizes each entry.
func NormalizeAll(descriptor any) []*model.DatasetRecord {
	switch v := descriptor.(type) {
	case nil:
		return nil
	case []any:
		var out []*model.DatasetRecord
		for _, item := range v {
			out = append(out, NormalizeAll(item)...)
		}
		return out
	case []map[string]any:
		var out []*model.DatasetRecord
		for _, item := range v {
			out = append(out, NormalizeAll(item)...)
		}
		return out
	case string:
		return fromText(v)
	case map[string]any:
		return single(fromObject(model.FromMap(v)))
	case *model.Object:
		return single(fromObject(v))
	}
	return nil
}

func single(rec *model.DatasetRecord) []*model.DatasetRecord {
	if rec == nil {
		return nil
	}
	return []*model.DatasetRecord{rec}
}

func fromText(raw string) []*model.DatasetRecord {
	text := strings.TrimSpace(StripFences(raw))
	if text == "" {
		return nil
	}
	if looksLikeJSON(text) {
		if decoded, err := model.DecodeJSON([]byte(text)); err == nil {
			if recs := NormalizeAll(decoded); len(recs) > 0 {
				return recs
			}
		}
	}

	rec := &model.DatasetRecord{}
	switch csv, ok := tabular.ExtractTable(text); {
	case ok:
		rec.RawCSV = csv
		table := tabular.Parse(csv)
		rec.Columns, rec.Rows = table.Columns, table.Rows
	case looksLikeSQL(text):
		rec.SQLScript = CollapseSQL(text)
	case looksLikeInterpreterScript(text):
		rec.InterpreterScript = CleanInterpreterScript(raw)
		rec.Description = text
	default:
		rec.Description = text
	}
	return single(finalize(rec))
}

func fromObject(obj *model.Object) *model.DatasetRecord {
	if obj == nil || obj.Len() == 0 {
		return nil
	}
	rec := &model.DatasetRecord{
		SourceID:          coalesceString(obj, idKeys),
		Name:              coalesceString(obj, nameKeys),
		Description:       coalesceString(obj, descriptionKeys),
		Subject:           coalesceString(obj, subjectKeys),
		SQLScript:         CollapseSQL(coalesceString(obj, sqlKeys)),
		InterpreterScript: CleanInterpreterScript(coalesceString(obj, interpreterKeys)),
		TableName:         coalesceString(obj, tableKeys),
		TableNames:        coalesceStringList(obj, tableListKeys),
	}

	if text := coalesceString(obj, csvKeys); text != "" {
		text = strings.TrimSpace(StripFences(text))
		if csv, ok := tabular.ExtractTable(text); ok {
			rec.RawCSV = csv
		} else if rec.SQLScript == "" && looksLikeSQL(text) {
			rec.SQLScript = CollapseSQL(text)
		}
	}

	columns := coalesceColumns(obj)
	if rawRows, ok := coalesceArray(obj, rowKeys); ok {
		rec.Columns, rec.Rows = buildRows(rawRows, columns)
	} else if rec.RawCSV != "" {
		table := tabular.Parse(rec.RawCSV)
		rec.Columns, rec.Rows = table.Columns, table.Rows
		if len(columns) > 0 && len(rec.Rows) == 0 {
			rec.Columns = columns
		}
	} else {
		rec.Columns = columns
	}

	if !hasSignal(rec) {
		for _, key := range wrapperKeys {
			if nested, ok := obj.Get(key); ok {
				if inner := Normalize(nested); inner != nil {
					return inner
				}
			}
		}
		return nil
	}
	return finalize(rec)
}

func hasSignal(rec *model.DatasetRecord) bool {
	return rec.SourceID != "" || rec.Name != "" || rec.Description != "" ||
		rec.SQLScript != "" || rec.InterpreterScript != "" || rec.RawCSV != "" ||
		len(rec.Columns) > 0 || len(rec.Rows) > 0 || rec.TableName != "" || len(rec.TableNames) > 0
}

// finalize fills the derived id and enforces the row/column invariants.
func finalize(rec *model.DatasetRecord) *model.DatasetRecord {
	if rec == nil || !hasSignal(rec) {
		return nil
	}
	if rec.Columns == nil {
		rec.Columns = []string{}
	}
	if rec.Rows == nil {
		rec.Rows = []model.Row{}
	}
	for _, row := range rec.Rows {
		for _, col := range rec.Columns {
			if _, ok := row[col]; !ok {
				row[col] = nil
			}
		}
	}
	rec.ID = datasetkey.Key(datasetkey.Inputs{
		ExplicitID: rec.SourceID,
		TableName:  rec.TableName,
		Script:     firstNonEmpty(rec.SQLScript, rec.InterpreterScript),
		RawCSV:     rec.RawCSV,
		Name:       rec.Name,
		Text:       rec.Description,
		TableNames: rec.TableNames,
		Columns:    rec.Columns,
	})
	return rec
}

// buildRows converts object or positional rows. Keys not in columns are
// appended to columns in encounter order.
func buildRows(raw []any, columns []string) ([]string, []model.Row) {
	cols := append([]string(nil), columns...)
	known := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		known[c] = struct{}{}
	}
	addColumn := func(name string) {
		if _, ok := known[name]; !ok {
			known[name] = struct{}{}
			cols = append(cols, name)
		}
	}

	rows := make([]model.Row, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case *model.Object:
			row := make(model.Row, v.Len())
			for _, k := range v.Keys() {
				addColumn(k)
				val, _ := v.Get(k)
				row[k] = scalar(val)
			}
			rows = append(rows, row)
		case map[string]any:
			obj := model.FromMap(v)
			row := make(model.Row, obj.Len())
			for _, k := range obj.Keys() {
				addColumn(k)
				val, _ := obj.Get(k)
				row[k] = scalar(val)
			}
			rows = append(rows, row)
		case []any:
			for len(cols) < len(v) {
				addColumn(fmt.Sprintf("column_%d", len(cols)+1))
			}
			row := make(model.Row, len(cols))
			for i, val := range v {
				row[cols[i]] = scalar(val)
			}
			rows = append(rows, row)
		}
	}
	for _, row := range rows {
		for _, c := range cols {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
	}
	return cols, rows
}

// scalar flattens nested values to their JSON text so every cell is a scalar.
func scalar(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func lookup(obj *model.Object, path string) (any, bool) {
	cur := obj
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur.Get(part)
		if !ok || v == nil {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := asObject(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// asObject accepts objects, plain maps and JSON object text.
func asObject(v any) (*model.Object, bool) {
	switch t := v.(type) {
	case *model.Object:
		return t, true
	case map[string]any:
		return model.FromMap(t), true
	case string:
		if !looksLikeJSON(t) {
			return nil, false
		}
		decoded, err := model.DecodeJSON([]byte(t))
		if err != nil {
			return nil, false
		}
		obj, ok := decoded.(*model.Object)
		return obj, ok
	}
	return nil, false
}

func coalesceString(obj *model.Object, keys []string) string {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func coalesceStringList(obj *model.Object, keys []string) []string {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		if names := stringList(v); len(names) > 0 {
			return names
		}
	}
	return nil
}

func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			} else if nested, ok := asObject(item); ok {
				if s := coalesceString(nested, columnNameKeys); s != "" {
					out = append(out, s)
				}
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func coalesceColumns(obj *model.Object) []string {
	return coalesceStringList(obj, columnKeys)
}

func coalesceArray(obj *model.Object, keys []string) ([]any, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []any:
			if len(t) > 0 {
				return t, true
			}
		case []map[string]any:
			if len(t) > 0 {
				out := make([]any, len(t))
				for i := range t {
					out[i] = t[i]
				}
				return out, true
			}
		}
	}
	return nil, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
