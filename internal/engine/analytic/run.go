package analytic

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"practicelab/internal/dataset/script"
	"practicelab/internal/engine/result"
)

var rowReturning = regexp.MustCompile(`(?i)^\s*(select|with|values|pragma|explain)\b`)

// Run executes learner code: every statement but the last is executed and
// the last one is queried. Failures become an error result.
func Run(ctx context.Context, eng Engine, code string, maxRows int) result.QueryResult {
	statements := script.Statements(code)
	if len(statements) == 0 {
		return result.QueryError("No statement to execute.")
	}
	for _, stmt := range statements[:len(statements)-1] {
		if err := eng.Exec(ctx, stmt); err != nil {
			return result.QueryError(errorMessage(err))
		}
	}
	last := statements[len(statements)-1]
	if !rowReturning.MatchString(last) {
		if err := eng.Exec(ctx, last); err != nil {
			return result.QueryError(errorMessage(err))
		}
		return result.QueryResult{Columns: []string{}, Rows: [][]any{}}
	}
	res, err := eng.Query(ctx, last, maxRows)
	if err != nil {
		return result.QueryError(errorMessage(err))
	}
	return res
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Query timed out."
	}
	if errors.Is(err, context.Canceled) {
		return "Query was cancelled."
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Statement failed."
	}
	return msg
}

// ErrorMessage exposes the learner-facing message for an engine error.
func ErrorMessage(err error) string {
	return errorMessage(err)
}
