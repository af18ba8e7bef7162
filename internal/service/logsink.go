package service

import (
	"log/slog"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// LogSink writes every engine event to the log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs ev at info level.
func (s *LogSink) Publish(ev domain.Event) {
	s.logger.Info("event",
		slog.String("event", ev.Name),
		slog.Time("at", ev.At),
		slog.Any("data", ev.Payload),
	)
}
