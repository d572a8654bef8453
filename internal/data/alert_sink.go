package data

import (
	"context"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// LogAlertSink is the default alert transport: it only logs. Deployments
// wanting email/Slack delivery swap in their own biz.AlertSink
// implementation; the monitor treats delivery failures as non-fatal either
// way.
type LogAlertSink struct {
	logger *log.Helper
}

// NewLogAlertSink creates a new log-only alert sink.
func NewLogAlertSink(logger log.Logger) *LogAlertSink {
	return &LogAlertSink{
		logger: log.NewHelper(logger),
	}
}

// SendAlert logs the alert at a level matching its severity.
func (s *LogAlertSink) SendAlert(ctx context.Context, alert *model.Alert) error {
	kv := []any{
		"severity", alert.Severity,
		"source", alert.Source,
		"component", alert.Component,
		"timestamp", alert.Timestamp,
		"message", alert.Message,
	}

	switch alert.Severity {
	case model.SeverityCritical, model.SeverityError:
		s.logger.Errorw(kv...)
	case model.SeverityWarning:
		s.logger.Warnw(kv...)
	default:
		s.logger.Infow(kv...)
	}
	return nil
}
