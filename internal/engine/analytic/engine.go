// Package analytic wraps the embedded SQL engine that learner datasets are
// loaded into.
package analytic

import (
	"context"

	"practicelab/internal/dataset/model"
	"practicelab/internal/engine/result"
)

// TableKind distinguishes base tables from views.
type TableKind string

const (
	KindTable TableKind = "table"
	KindView  TableKind = "view"
)

// Table is one user-visible relation in the engine.
type Table struct {
	Name string
	Kind TableKind
}

// Engine is the session-scoped analytical engine. Implementations must be
// safe for use by one goroutine at a time; the preparation coordinator
// serialises access.
type Engine interface {
	// ListTables returns user tables and views in creation order.
	ListTables(ctx context.Context) ([]Table, error)
	DropTable(ctx context.Context, table Table) error
	Exec(ctx context.Context, stmt string) error
	// Query runs stmt and collects at most maxRows rows (0 means unlimited).
	Query(ctx context.Context, stmt string, maxRows int) (result.QueryResult, error)
	// LoadTable creates name with columns and bulk inserts rows.
	LoadTable(ctx context.Context, name string, columns []string, rows []model.Row) error
	Close() error
}

// TableNames flattens tables to their names.
func TableNames(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}
