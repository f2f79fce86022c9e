package fetcher

import (
	"context"
	"database/sql"
	"fmt"

	"practicelab/internal/common/db"
	pkgerrors "practicelab/pkg/errors"
)

const selectPayload = "SELECT payload FROM question_datasets WHERE question_id = ?"

// RowQuerier is satisfied by *sql.DB and *sql.Tx.
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQL reads payloads from the question_datasets table.
type SQL struct {
	db RowQuerier
}

func NewSQL(q RowQuerier) (*SQL, error) {
	if q == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQL{db: q}, nil
}

func (s *SQL) Fetch(ctx context.Context, questionID string) (any, error) {
	var payload sql.NullString
	err := s.db.QueryRowContext(ctx, selectPayload, questionID).Scan(&payload)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("query dataset payload failed: %w", err), pkgerrors.DatabaseError)
	}
	if !payload.Valid {
		return nil, nil
	}
	v, err := decodePayload([]byte(payload.String))
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatasetDecodeFailed)
	}
	return v, nil
}
