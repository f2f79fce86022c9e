package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	dsmodel "practicelab/internal/dataset/model"
	"practicelab/internal/engine/result"
	"practicelab/internal/practice/model"
	"practicelab/internal/practice/service"
	"practicelab/internal/prep"
	pkgerrors "practicelab/pkg/errors"
)

type stubFetcher struct {
	payload any
	err     error
	calls   int
}

func (f *stubFetcher) Fetch(context.Context, string) (any, error) {
	f.calls++
	return f.payload, f.err
}

func newSession(t *testing.T, cfg service.Config, f *stubFetcher) (*service.Manager, *service.Session) {
	t.Helper()
	var m *service.Manager
	var err error
	if f != nil {
		m, err = service.NewManager(cfg, f)
	} else {
		m, err = service.NewManager(cfg, nil)
	}
	if err != nil {
		t.Fatalf("create manager failed: %v", err)
	}
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return m, s
}

func decode(t *testing.T, text string) any {
	t.Helper()
	v, err := dsmodel.DecodeJSON([]byte(text))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return v
}

func TestSelectQuestionWithTabularDataset(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, service.Config{}, nil)

	view, err := s.SelectQuestion(ctx, decode(t, `{
		"id": "q1",
		"type": "sql",
		"exercise_id": "ex1",
		"dataset": {"table_name": "orders", "dataset_csv_raw": "id,amount\n1,10\n2,20\n3,30"}
	}`))
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if view.Engine != model.EngineAnalytic {
		t.Fatalf("expected analytic engine, got %s", view.Engine)
	}
	if view.State.Analytic == nil || view.State.Analytic.Phase != prep.PhaseReady {
		t.Fatalf("expected ready engine, got %+v", view.State.Analytic)
	}
	if len(view.Variants) != 1 || view.Variants[0].TableName != "orders" {
		t.Fatalf("unexpected variants: %+v", view.Variants)
	}

	p, err := s.Preview(ctx, view.Variants[0].ID)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if len(p.Columns) != 2 || len(p.Rows) != 3 {
		t.Fatalf("unexpected preview: %+v", p)
	}

	res, err := s.Execute(ctx, "SELECT COUNT(*) AS n FROM orders")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	q, ok := res.(result.QueryResult)
	if !ok || q.Failed() || q.Rows[0][0] != int64(3) {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestSelectQuestionMultiTableScript(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, service.Config{}, nil)

	view, err := s.SelectQuestion(ctx, map[string]any{
		"id":   "q1",
		"type": "sqlite",
		"dataset": map[string]any{
			"create_sql": "CREATE TABLE customers (id INTEGER, name TEXT);\nCREATE TABLE orders (id INTEGER, customer_id INTEGER);\nINSERT INTO customers VALUES (1, 'Ann');\nINSERT INTO orders VALUES (7, 1);",
		},
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(view.Variants) != 2 || view.Variants[0].Label != "customers" || view.Variants[1].Label != "orders" {
		t.Fatalf("unexpected variants: %+v", view.Variants)
	}

	p, err := s.Preview(ctx, view.Variants[1].ID)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if len(p.Rows) != 1 || p.Rows[0][0] != int64(7) {
		t.Fatalf("unexpected preview: %+v", p)
	}

	data, name, err := s.Export(ctx, view.Variants[1].ID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if name != "orders.xlsx" || len(data) == 0 {
		t.Fatalf("unexpected export %q (%d bytes)", name, len(data))
	}
}

func TestSelectQuestionCoalescesDuplicateDescriptors(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, service.Config{}, nil)

	setup := "CREATE TABLE orders (id INTEGER, amount INTEGER);\nINSERT INTO orders VALUES (1, 10);"
	view, err := s.SelectQuestion(ctx, map[string]any{
		"id":              "q1",
		"type":            "sql",
		"exerciseDataset": map[string]any{"table_name": "orders", "create_sql": setup},
		"dataset":         setup,
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if view.State.Analytic == nil || view.State.Analytic.Phase != prep.PhaseReady {
		t.Fatalf("expected ready engine, got %+v", view.State.Analytic)
	}
	if len(view.State.Analytic.Tables) != 1 || view.State.Analytic.Tables[0] != "orders" {
		t.Fatalf("unexpected tables: %v", view.State.Analytic.Tables)
	}
	if len(view.Variants) != 1 || view.Variants[0].TableName != "orders" {
		t.Fatalf("expected one variant, got %+v", view.Variants)
	}
}

func TestSwitchingQuestionsResetsTables(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, service.Config{}, nil)

	if _, err := s.SelectQuestion(ctx, map[string]any{"id": "q1", "dataset": "CREATE TABLE orders (id INTEGER);"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if _, err := s.SelectQuestion(ctx, map[string]any{"id": "q2", "dataset": "CREATE TABLE users (id INTEGER);"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	res, err := s.Execute(ctx, "SELECT * FROM orders")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	q := res.(result.QueryResult)
	if !q.Failed() || !strings.Contains(q.Error, "orders") {
		t.Fatalf("expected missing table error, got %+v", q)
	}
	state := s.State()
	if state.QuestionID != "q2" || len(state.Analytic.Tables) != 1 || state.Analytic.Tables[0] != "users" {
		t.Fatalf("unexpected state: %+v", state.Analytic)
	}
}

func TestSelectQuestionFetchesMissingDataset(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{payload: decode(t, `{"columns":["a"],"rows":[[1],[2]],"name":"Numbers"}`)}
	_, s := newSession(t, service.Config{}, f)

	view, err := s.SelectQuestion(ctx, map[string]any{"id": "q1", "type": "sql", "dataset": "Orders placed last week"})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("expected one fetch, got %d", f.calls)
	}
	if len(view.Variants) != 1 || view.Variants[0].Label != "Numbers" {
		t.Fatalf("unexpected variants: %+v", view.Variants)
	}
	if view.State.Analytic.Tables[0] != "numbers" {
		t.Fatalf("unexpected tables: %v", view.State.Analytic.Tables)
	}
}

func TestSelectQuestionFetchFailureDegrades(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{err: errors.New("content service down")}
	_, s := newSession(t, service.Config{}, f)

	view, err := s.SelectQuestion(ctx, map[string]any{"id": "q1", "dataset": "Orders placed last week"})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(view.Variants) != 1 {
		t.Fatalf("expected description variant, got %+v", view.Variants)
	}
	if _, err := s.Preview(ctx, ""); !pkgerrors.Is(err, pkgerrors.PreviewUnavailable) {
		t.Fatalf("expected preview unavailable, got %v", err)
	}
}

func TestInterpreterQuestion(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, service.Config{}, nil)

	view, err := s.SelectQuestion(ctx, map[string]any{
		"id":                    "q1",
		"type":                  "python",
		"exercisePythonDataset": map[string]any{"name": "Sales", "dataset_csv_raw": "region,total\nnorth,3\nsouth,4"},
		"dataset":               map[string]any{"name": "Empty", "columns": []any{"a"}},
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(view.State.Datasets) != 2 {
		t.Fatalf("expected two datasets, got %+v", view.State.Datasets)
	}
	if got := view.State.Datasets[0]; got.State != prep.LoadLoaded || got.Variable != "sales" {
		t.Fatalf("unexpected first load: %+v", got)
	}
	if got := view.State.Datasets[1]; got.State != prep.LoadFailed {
		t.Fatalf("expected empty dataset to fail, got %+v", got)
	}

	res, err := s.Execute(ctx, "print(sales.n, sales.rows[2].region)")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	out, ok := res.(result.ScriptResult)
	if !ok || out.Output != "2\tsouth\n" {
		t.Fatalf("unexpected output: %#v", res)
	}

	state, err := s.Retry(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if state.Datasets[0].State != prep.LoadLoaded {
		t.Fatalf("retry must keep loaded dataset: %+v", state.Datasets[0])
	}
}

func TestSessionErrors(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, service.Config{MaxCodeBytes: 8}, nil)

	if _, err := s.Execute(ctx, "SELECT 1"); !pkgerrors.Is(err, pkgerrors.QuestionNotSelected) {
		t.Fatalf("expected question not selected, got %v", err)
	}
	if _, err := s.SelectQuestion(ctx, map[string]any{"id": "q1"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if _, err := s.Execute(ctx, "SELECT 1 + 1 AS two"); !pkgerrors.Is(err, pkgerrors.CodeTooLarge) {
		t.Fatalf("expected code too large, got %v", err)
	}
	if _, err := s.Preview(ctx, "nope"); !pkgerrors.Is(err, pkgerrors.PreviewUnavailable) {
		t.Fatalf("expected preview unavailable without datasets, got %v", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m, s := newSession(t, service.Config{MaxSessions: 1, IdleTTL: time.Millisecond}, nil)

	if _, err := m.Create(ctx); !pkgerrors.Is(err, pkgerrors.SessionLimitReached) {
		t.Fatalf("expected session limit, got %v", err)
	}
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("expected session lookup, got %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if n := m.EvictIdle(ctx); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, err := m.Get(s.ID()); !pkgerrors.Is(err, pkgerrors.SessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if err := m.Close(ctx, s.ID()); !pkgerrors.Is(err, pkgerrors.SessionNotFound) {
		t.Fatalf("expected close of evicted session to fail, got %v", err)
	}
}
