package service

import (
	"context"

	"ticket-booking/internal/util"

	"go.uber.org/zap"
)

// NotificationAdapter dispatches user-facing notifications. The core never
// inspects adapter internals; any error is a retryable failure for the task
// orchestrator. Duplicate sends on retry are an accepted risk — there is no
// idempotency key per (recipient, kind).
type NotificationAdapter interface {
	Notify(ctx context.Context, recipient int64, kind string, payload map[string]string) error
}

// LogNotifier is the default adapter: it records the notification instead of
// delivering it. Swapped for a real email/push adapter in production wiring.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient int64, kind string, payload map[string]string) error {
	fields := []zap.Field{
		zap.Int64("recipient", recipient),
		zap.String("kind", kind),
	}
	for k, v := range payload {
		fields = append(fields, zap.String(k, v))
	}
	n.logger.Info("Notification dispatched", fields...)
	util.NotificationsSentTotal.WithLabelValues(kind).Inc()
	return nil
}
