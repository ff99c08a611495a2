// Package metrics defines Prometheus metrics for jushuitan-go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jst"

// Outcome label values.
const (
	OutcomeSuccess       = "success"
	OutcomeConfiguration = "configuration"
	OutcomeTransport     = "transport"
	OutcomeProtocol      = "protocol"
	OutcomeAPI           = "api"
)

// Open API client metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Total number of signed business requests by path and outcome.",
	}, []string{"path", "outcome"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Duration of signed business requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})

	TokenGrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_grants_total",
		Help:      "Total number of token endpoint calls by grant type and outcome.",
	}, []string{"grant_type", "outcome"})
)

// Token cache metrics.
var (
	TokenCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_cache_hits_total",
		Help:      "Total number of access tokens restored from the cache.",
	})

	TokenCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_cache_misses_total",
		Help:      "Total number of cache lookups that found no access token.",
	})

	TokenCacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_cache_errors_total",
		Help:      "Total number of token cache failures by operation.",
	}, []string{"op"})
)

// Mock server metrics.
var (
	MockRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mock_requests_total",
		Help:      "Total number of requests served by the mock open API server.",
	}, []string{"method", "path", "status"})
)

// Token refresher metrics.
var (
	RefresherRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresher_runs_total",
		Help:      "Total number of scheduled token refreshes by outcome.",
	}, []string{"outcome"})

	RefresherNextRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresher_next_run_timestamp",
		Help:      "Unix timestamp of the next scheduled token refresh.",
	})

	RefresherLastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresher_last_success_timestamp",
		Help:      "Unix timestamp of the last successful token refresh.",
	})
)

// Notification metrics.
var (
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of refresh notifications sent by event and outcome.",
	}, []string{"event", "outcome"})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Duration of webhook notification delivery in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)
