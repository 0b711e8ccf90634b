package events

import (
	"context"
	"log/slog"

	"fulfillment/internal/core/domain/model/kernel"
)

// LoggingNotifier writes notifications to the log. It is used when no broker is
// configured.
type LoggingNotifier struct {
	logger *slog.Logger
}

func NewLoggingNotifier(logger *slog.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger.With("component", "notifier")}
}

func (n *LoggingNotifier) Notify(ctx context.Context, event kernel.DomainEvent) error {
	msg := NewMessage(event)
	n.logger.InfoContext(ctx, "notification",
		"event", msg.Event,
		"key", msg.Key,
		"occurred_at", msg.OccurredAt,
		"data", msg.Data)
	return nil
}
