// Package notify defines the notification interface and implementations
// for token refresh events.
package notify

import (
	"context"
	"time"
)

// Event names used as metric labels.
const (
	EventFailure  = "failure"
	EventRecovery = "recovery"
)

// RefreshFailure describes a scheduled refresh that did not succeed.
type RefreshFailure struct {
	AppKey string
	// Kind is the SDK error kind, e.g. "api" or "transport".
	Kind string
	// Code is the platform error code or HTTP status, 0 when unknown.
	Code    int
	Message string
	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int
	At                  time.Time
}

// RefreshRecovery describes the first success after one or more failures.
type RefreshRecovery struct {
	AppKey         string
	FailedAttempts int
	ExpiresIn      int
	At             time.Time
}

// Notifier delivers refresh notifications.
type Notifier interface {
	SendFailure(ctx context.Context, f *RefreshFailure) error
	SendRecovery(ctx context.Context, r *RefreshRecovery) error
}
