package preview_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"practicelab/internal/dataset/model"
	"practicelab/internal/engine/analytic"
	"practicelab/internal/preview"
	appErr "practicelab/pkg/errors"
)

func TestFromRowsCapsAndFillsNulls(t *testing.T) {
	rows := make([]model.Row, 25)
	for i := range rows {
		rows[i] = model.Row{"a": int64(i)}
	}
	p := preview.FromRows([]string{"a", "b"}, rows)
	if len(p.Rows) != preview.MaxRows || !p.Truncated {
		t.Fatalf("expected capped preview, got %d rows truncated=%v", len(p.Rows), p.Truncated)
	}
	if !reflect.DeepEqual(p.Rows[0], []any{int64(0), nil}) {
		t.Fatalf("unexpected first row: %v", p.Rows[0])
	}
}

func TestResolverPrefersRows(t *testing.T) {
	opened := 0
	r := preview.NewResolver(func(context.Context) (analytic.Engine, error) {
		opened++
		return nil, fmt.Errorf("should not open")
	})
	v := model.DatasetVariant{ID: "x", Record: model.DatasetRecord{
		ID: "x", Columns: []string{"a"}, Rows: []model.Row{{"a": "v"}},
	}}
	p, err := r.Resolve(context.Background(), v)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if opened != 0 || p.Rows[0][0] != "v" {
		t.Fatalf("expected row preview, got %+v (opened %d)", p, opened)
	}
}

func TestResolverRunsScriptForTable(t *testing.T) {
	r := preview.NewResolver(preview.SQLiteOpener(analytic.SQLiteConfig{}))
	rec := model.DatasetRecord{
		ID:        "shop",
		SQLScript: "CREATE TABLE a (x INTEGER);\nCREATE TABLE b (y TEXT);\nINSERT INTO b VALUES ('hi');",
	}
	p, err := r.Resolve(context.Background(), model.DatasetVariant{ID: "shop::b", TableName: "b", Record: rec})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !reflect.DeepEqual(p.Columns, []string{"y"}) || len(p.Rows) != 1 || p.Rows[0][0] != "hi" {
		t.Fatalf("unexpected preview: %+v", p)
	}

	p, err = r.Resolve(context.Background(), model.DatasetVariant{ID: "shop", Record: rec})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !reflect.DeepEqual(p.Columns, []string{"x"}) {
		t.Fatalf("expected first created table, got %+v", p)
	}
}

func TestResolverUnavailable(t *testing.T) {
	r := preview.NewResolver(preview.SQLiteOpener(analytic.SQLiteConfig{}))
	cases := []model.DatasetRecord{
		{ID: "text", Description: "just words"},
		{ID: "bad", SQLScript: "CREATE TABLE broken ("},
	}
	for _, rec := range cases {
		_, err := r.Resolve(context.Background(), model.DatasetVariant{ID: rec.ID, Record: rec})
		if !appErr.Is(err, appErr.PreviewUnavailable) {
			t.Fatalf("%s: expected preview unavailable, got %v", rec.ID, err)
		}
	}
}
