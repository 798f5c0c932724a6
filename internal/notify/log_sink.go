package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes notifications to a zap logger, mapping severity to level.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink backed by logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("description", n.Description),
		zap.String("severity", string(n.Severity)),
	}
	switch n.Severity {
	case SeverityDestructive:
		s.logger.Error("notification", fields...)
	case SeverityWarning:
		s.logger.Warn("notification", fields...)
	default:
		s.logger.Info("notification", fields...)
	}
}
