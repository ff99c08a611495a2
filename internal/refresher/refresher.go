// Package refresher keeps an access token fresh by refreshing it on a cron
// schedule.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/jushuitan-go/internal/metrics"
	"github.com/donaldgifford/jushuitan-go/internal/notify"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

// DefaultSchedule refreshes well inside the platform's 7200s token lifetime.
const DefaultSchedule = "@every 1h"

// ErrNoRefreshToken is returned when a Refresher is built without a token.
var ErrNoRefreshToken = errors.New("refresh token is required")

// TokenRefresher trades a refresh token for a new token pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (jushuitan.Result, error)
}

// Refresher runs scheduled refreshes and follows refresh-token rotation.
type Refresher struct {
	cron    *cron.Cron
	tokens  TokenRefresher
	log     *slog.Logger
	entryID cron.EntryID
	timeout time.Duration

	// OnRefresh, when set, is called after every successful refresh.
	OnRefresh func(jushuitan.Result)
	// Notifier receives failures and the recovery that follows them.
	Notifier notify.Notifier
	// AppKey labels notifications.
	AppKey string

	mu           sync.Mutex
	refreshToken string
	failures     int
}

// New creates a Refresher that refreshes through tokens on schedule. The
// schedule accepts standard five-field cron specs and descriptors such as
// "@every 30m".
func New(tokens TokenRefresher, refreshToken, schedule string, log *slog.Logger) (*Refresher, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if log == nil {
		log = slog.Default()
	}

	r := &Refresher{
		cron:         cron.New(),
		tokens:       tokens,
		log:          log,
		timeout:      time.Minute,
		refreshToken: refreshToken,
	}

	id, err := r.cron.AddFunc(schedule, r.runScheduled)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", schedule, err)
	}
	r.entryID = id

	return r, nil
}

// Start begins running scheduled refreshes.
func (r *Refresher) Start() {
	r.log.Info("token refresher started")
	r.cron.Start()
	r.syncNextRun()
}

// Stop halts the schedule. The returned context is done once a running
// refresh finishes.
func (r *Refresher) Stop() context.Context {
	r.log.Info("token refresher stopping")
	return r.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (r *Refresher) Entries() []cron.Entry {
	return r.cron.Entries()
}

// Next returns the time of the next scheduled refresh. It is zero until
// the refresher is started.
func (r *Refresher) Next() time.Time {
	return r.cron.Entry(r.entryID).Next
}

// RefreshToken returns the refresh token the next run will use.
func (r *Refresher) RefreshToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshToken
}

// RefreshNow refreshes immediately. Runs are serialized, and a rotated
// refresh token replaces the current one.
func (r *Refresher) RefreshNow(ctx context.Context) (jushuitan.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.tokens.RefreshToken(ctx, r.refreshToken)
	if err != nil {
		metrics.RefresherRunsTotal.WithLabelValues(outcome(err)).Inc()
		r.failures++
		r.notifyFailure(ctx, err)
		return nil, err
	}

	metrics.RefresherRunsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.RefresherLastSuccessTimestamp.SetToCurrentTime()

	if r.failures > 0 {
		r.notifyRecovery(ctx, result)
		r.failures = 0
	}

	if next := result.RefreshToken(); next != "" && next != r.refreshToken {
		r.refreshToken = next
		r.log.Debug("refresh token rotated")
	}

	if r.OnRefresh != nil {
		r.OnRefresh(result)
	}
	return result, nil
}

func (r *Refresher) runScheduled() {
	defer r.syncNextRun()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	r.log.Info("scheduled token refresh starting")
	result, err := r.RefreshNow(ctx)
	if err != nil {
		r.log.Error("scheduled token refresh failed", "error", err, "code", jushuitan.CodeOf(err))
		return
	}
	r.log.Info("scheduled token refresh finished", "expires_in", result.ExpiresIn())
}

func (r *Refresher) notifyFailure(ctx context.Context, err error) {
	if r.Notifier == nil {
		return
	}
	f := &notify.RefreshFailure{
		AppKey:              r.AppKey,
		Kind:                kindOf(err),
		Code:                jushuitan.CodeOf(err),
		Message:             err.Error(),
		ConsecutiveFailures: r.failures,
		At:                  time.Now(),
	}
	if nerr := r.Notifier.SendFailure(ctx, f); nerr != nil {
		r.log.Warn("sending refresh failure notification failed", "error", nerr)
	}
}

func (r *Refresher) notifyRecovery(ctx context.Context, result jushuitan.Result) {
	if r.Notifier == nil {
		return
	}
	rec := &notify.RefreshRecovery{
		AppKey:         r.AppKey,
		FailedAttempts: r.failures,
		ExpiresIn:      result.ExpiresIn(),
		At:             time.Now(),
	}
	if err := r.Notifier.SendRecovery(ctx, rec); err != nil {
		r.log.Warn("sending refresh recovery notification failed", "error", err)
	}
}

func (r *Refresher) syncNextRun() {
	if next := r.Next(); !next.IsZero() {
		metrics.RefresherNextRunTimestamp.Set(float64(next.Unix()))
	}
}

func kindOf(err error) string {
	var e *jushuitan.Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return "unknown"
}

func outcome(err error) string {
	switch {
	case jushuitan.IsConfiguration(err):
		return metrics.OutcomeConfiguration
	case jushuitan.IsTransport(err):
		return metrics.OutcomeTransport
	case jushuitan.IsProtocol(err):
		return metrics.OutcomeProtocol
	case jushuitan.IsAPI(err):
		return metrics.OutcomeAPI
	default:
		return metrics.OutcomeTransport
	}
}
