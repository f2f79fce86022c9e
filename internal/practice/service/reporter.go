package service

import (
	"context"

	"practicelab/internal/prep"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
)

// logReporter records engine transitions in the service log. The session id
// travels in the context.
type logReporter struct{}

func (r logReporter) ReportPhase(ctx context.Context, update prep.PhaseUpdate) {
	fields := []zap.Field{
		zap.String("question_id", update.QuestionID),
		zap.String("phase", string(update.Phase)),
	}
	if update.Phase == prep.PhaseFailed {
		logger.Warn(ctx, "engine preparation failed", append(fields, zap.String("error", update.Error))...)
		return
	}
	logger.Info(ctx, "engine phase changed", fields...)
}

func (r logReporter) ReportLoad(ctx context.Context, questionID string, load prep.DatasetLoad) {
	fields := []zap.Field{
		zap.String("question_id", questionID),
		zap.String("dataset", load.DatasetID),
		zap.String("variable", load.Variable),
		zap.String("state", string(load.State)),
	}
	if load.State == prep.LoadFailed {
		logger.Warn(ctx, "interpreter dataset load failed", append(fields, zap.String("message", load.Message))...)
		return
	}
	logger.Info(ctx, "interpreter dataset state changed", fields...)
}
