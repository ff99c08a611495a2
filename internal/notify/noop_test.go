package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoOpNotifier_SendFailure(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := n.SendFailure(context.Background(), &RefreshFailure{AppKey: "app-1", ConsecutiveFailures: 1})
	require.NoError(t, err)
}

func TestNoOpNotifier_SendRecovery(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := n.SendRecovery(context.Background(), &RefreshRecovery{AppKey: "app-1", FailedAttempts: 2})
	require.NoError(t, err)
}

// compile-time interface checks.
var (
	_ Notifier = (*NoOpNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
)
