package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded notifications. It is
// used when no webhook is configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards events with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// SendFailure logs and discards a failure.
func (n *NoOpNotifier) SendFailure(_ context.Context, f *RefreshFailure) error {
	n.log.Debug("notification discarded (no backend configured)",
		"event", EventFailure,
		"app_key", f.AppKey,
		"failures", f.ConsecutiveFailures,
	)
	return nil
}

// SendRecovery logs and discards a recovery.
func (n *NoOpNotifier) SendRecovery(_ context.Context, r *RefreshRecovery) error {
	n.log.Debug("notification discarded (no backend configured)",
		"event", EventRecovery,
		"app_key", r.AppKey,
		"failed_attempts", r.FailedAttempts,
	)
	return nil
}
