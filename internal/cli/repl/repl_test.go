package repl_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"practicelab/internal/cli/repl"
	"practicelab/internal/practice/service"
)

const questionJSON = `{
  "id": "q1",
  "question_type": "sql",
  "dataset": {
    "name": "Orders",
    "table_name": "orders",
    "columns": ["id", "amount"],
    "rows": [[1, 10], [2, 25]]
  }
}`

const questionYAML = `id: q2
type: lua
dataset:
  table_name: sales
  columns: [region, total]
  rows:
    - [north, 5]
`

func newSession(t *testing.T) (*repl.Session, *bytes.Buffer) {
	t.Helper()
	manager, err := service.NewManager(service.Config{}, nil)
	if err != nil {
		t.Fatalf("create manager failed: %v", err)
	}
	t.Cleanup(func() { manager.Shutdown(context.Background()) })
	session, err := manager.Create(context.Background())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	var out bytes.Buffer
	return repl.New(session, &out, false), &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
	return path
}

func TestLoadAndQuery(t *testing.T) {
	s, out := newSession(t)
	ctx := context.Background()

	if err := s.Exec(ctx, ".load "+writeFile(t, "q.json", questionJSON)); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "1. Orders (orders)") || !strings.Contains(got, "engine ready, tables: orders") {
		t.Fatalf("unexpected load output:\n%s", got)
	}

	out.Reset()
	if err := s.Exec(ctx, "SELECT SUM(amount) AS total FROM orders"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "total") || !strings.Contains(got, "35") || !strings.Contains(got, "(1 rows)") {
		t.Fatalf("unexpected query output:\n%s", got)
	}

	out.Reset()
	if err := s.Exec(ctx, "SELECT * FROM nope"); err != nil {
		t.Fatalf("engine failures are printed, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "error: ") {
		t.Fatalf("expected error line, got %q", out.String())
	}

	out.Reset()
	if err := s.Exec(ctx, ".preview 1"); err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if !strings.Contains(out.String(), "(2 rows)") {
		t.Fatalf("unexpected preview output:\n%s", out.String())
	}
}

func TestExportToDirectory(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	if err := s.Exec(ctx, ".load "+writeFile(t, "q.json", questionJSON)); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	dir := t.TempDir()
	if err := s.Exec(ctx, ".export 1 "+dir); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Orders.xlsx")); err != nil {
		t.Fatalf("expected workbook: %v", err)
	}
}

func TestInterpreterQuestionFromYAML(t *testing.T) {
	s, out := newSession(t)
	ctx := context.Background()
	if err := s.Exec(ctx, ".load "+writeFile(t, "q.yaml", questionYAML)); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !strings.Contains(out.String(), "sales -> sales: loaded") {
		t.Fatalf("unexpected load output:\n%s", out.String())
	}

	out.Reset()
	code := writeFile(t, "main.lua", "print(sales.rows[1].region)")
	if err := s.Exec(ctx, ".run "+code); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "north\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCommandErrors(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	cases := []string{
		".load",
		".load /does/not/exist.json",
		".preview 3",
		".export 1",
		".bogus",
		"SELECT 1",
		".retry",
	}
	for _, line := range cases {
		if err := s.Exec(ctx, line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
	if err := s.Exec(ctx, ".exit"); !errors.Is(err, repl.ErrQuit) {
		t.Fatalf("expected quit, got %v", err)
	}
	if err := s.Exec(ctx, "   "); err != nil {
		t.Fatalf("blank line should be ignored: %v", err)
	}
}
