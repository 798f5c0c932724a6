// Package logging builds the zap loggers used across the module and the
// OperationError type that ties a failure to the step and submission that
// produced it.
//
// Every accepted submission gets a uuid. The controller derives a child logger
// with WithOperation(logger, "submission.submit", id) so each log line of one
// attempt carries the same submission_id, and wraps transport or decode
// failures in NewOperationError("submission.predict", id, err). The wrapped
// error text is what lands in Failure.Reason and in the logs; users only ever
// see the generic notification.
package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a production ready structured logger.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// NewCLILogger builds a console logger. Unless verbose is set only panics are
// written, so diagnostics never mix with user-facing output.
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = ""
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DPanicLevel)
	}
	return cfg.Build()
}

// WithOperation enriches the logger with operation and submission identifiers.
// An empty submissionID is omitted, which is the case for rejected submits
// and for work outside a submission such as health checks.
func WithOperation(logger *zap.Logger, operation, submissionID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if submissionID != "" {
		fields = append(fields, zap.String("submission_id", submissionID))
	}
	return logger.With(fields...)
}
