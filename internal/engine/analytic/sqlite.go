package analytic

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"practicelab/internal/dataset/model"
	"practicelab/internal/engine/result"

	_ "modernc.org/sqlite"
)

const defaultDSN = ":memory:"

// SQLiteConfig holds the embedded engine settings.
type SQLiteConfig struct {
	// DSN defaults to a private in-memory database.
	DSN string `yaml:"dsn"`
	// BusyTimeout bounds waits on locked databases.
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// SQLite implements Engine on modernc.org/sqlite.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens an engine. In-memory databases live inside one connection,
// so the pool is pinned to a single connection that never expires.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLite, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite failed: %w", err)
	}
	if cfg.BusyTimeout > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set busy timeout failed: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables failed: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("scan table failed: %w", err)
		}
		tables = append(tables, Table{Name: name, Kind: TableKind(kind)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables failed: %w", err)
	}
	return tables, nil
}

func (s *SQLite) DropTable(ctx context.Context, table Table) error {
	kind := "TABLE"
	if table.Kind == KindView {
		kind = "VIEW"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP %s IF EXISTS %s", kind, QuoteIdent(table.Name))); err != nil {
		return fmt.Errorf("drop %s %s failed: %w", strings.ToLower(kind), table.Name, err)
	}
	return nil
}

func (s *SQLite) Exec(ctx context.Context, stmt string) error {
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *SQLite) Query(ctx context.Context, stmt string, maxRows int) (result.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return result.QueryResult{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return result.QueryResult{}, err
	}
	out := result.QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(out.Rows) >= maxRows {
			out.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return result.QueryResult{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return result.QueryResult{}, err
	}
	return out, nil
}

func (s *SQLite) LoadTable(ctx context.Context, name string, columns []string, rows []model.Row) error {
	if name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
		marks[i] = "?"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(name), strings.Join(quoted, ", "))); err != nil {
		return fmt.Errorf("create table %s failed: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(name), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert failed: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			args[i] = bindValue(row[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s failed: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load failed: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// QuoteIdent quotes an identifier for SQL text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func bindValue(v any) any {
	switch t := v.(type) {
	case nil, string, int64, float64, []byte:
		return t
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
