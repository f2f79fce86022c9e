package preview

import (
	"context"
	"fmt"
	"strings"

	"practicelab/internal/dataset/model"
	"practicelab/internal/dataset/script"
	"practicelab/internal/engine/analytic"
	appErr "practicelab/pkg/errors"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
)

// Opener opens a throwaway analytical engine.
type Opener func(ctx context.Context) (analytic.Engine, error)

// SQLiteOpener opens private in-memory SQLite engines.
func SQLiteOpener(cfg analytic.SQLiteConfig) Opener {
	return func(ctx context.Context) (analytic.Engine, error) {
		return analytic.OpenSQLite(ctx, cfg)
	}
}

// Resolver builds previews for variants. Rows carried by the record are used
// directly; otherwise the record's setup script is run in a scratch engine
// and the variant's table is sampled.
type Resolver struct {
	open Opener
}

func NewResolver(open Opener) *Resolver {
	return &Resolver{open: open}
}

// Resolve returns the preview of v or a PreviewUnavailable error.
func (r *Resolver) Resolve(ctx context.Context, v model.DatasetVariant) (Preview, error) {
	rec := v.Record
	if rec.HasRows() && rowsBelongTo(&rec, v.TableName) {
		return FromRows(rec.Columns, rec.Rows), nil
	}
	if rec.SQLScript != "" && r.open != nil {
		p, err := r.fromScript(ctx, rec.SQLScript, v.TableName)
		if err == nil {
			return p, nil
		}
		logger.Debug(ctx, "scratch preview failed", zap.String("variant", v.ID), zap.Error(err))
	}
	return Preview{}, appErr.New(appErr.PreviewUnavailable)
}

// rowsBelongTo reports whether the record's rows describe table. Rows of a
// multi-table script are taken to belong to the declared table only.
func rowsBelongTo(rec *model.DatasetRecord, table string) bool {
	if table == "" || rec.SQLScript == "" {
		return true
	}
	declared := rec.DeclaredTables()
	if len(declared) == 0 {
		return len(script.ExtractTableNames(rec.SQLScript)) <= 1
	}
	return strings.EqualFold(declared[0], table)
}

func (r *Resolver) fromScript(ctx context.Context, setup, table string) (Preview, error) {
	eng, err := r.open(ctx)
	if err != nil {
		return Preview{}, err
	}
	defer func() { _ = eng.Close() }()

	for _, stmt := range script.Statements(setup) {
		if err := eng.Exec(ctx, stmt); err != nil {
			return Preview{}, err
		}
	}
	if table == "" {
		tables, err := eng.ListTables(ctx)
		if err != nil {
			return Preview{}, err
		}
		if len(tables) == 0 {
			return Preview{}, fmt.Errorf("setup script created no table")
		}
		table = tables[0].Name
	}
	res, err := eng.Query(ctx, "SELECT * FROM "+analytic.QuoteIdent(table), MaxRows)
	if err != nil {
		return Preview{}, err
	}
	return FromGrid(res.Columns, res.Rows, res.Truncated), nil
}
