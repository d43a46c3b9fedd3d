package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notification events to the service log instead of
// delivering them. The default for development and tests.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("kind", ev.Kind),
		zap.String("traveler_number", ev.Traveler.TravelerNumber),
		zap.String("actor", ev.Actor.Username),
	}
	if ev.RequestType != "" {
		fields = append(fields, zap.String("request_type", string(ev.RequestType)))
	}
	if ev.Approval != nil {
		fields = append(fields, zap.String("approval_status", string(ev.Approval.Status)))
	}
	s.logger.Info("notification", fields...)
	return nil
}
