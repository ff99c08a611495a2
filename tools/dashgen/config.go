package main

import "errors"

// KnownMetrics is the set of metric names exported by jst plus recording
// rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// Open API client metrics.
	"jst_api_requests_total":           true,
	"jst_api_request_duration_seconds": true,
	"jst_token_grants_total":           true,

	// Token cache metrics.
	"jst_token_cache_hits_total":   true,
	"jst_token_cache_misses_total": true,
	"jst_token_cache_errors_total": true,

	// Refresher metrics.
	"jst_refresher_runs_total":             true,
	"jst_refresher_next_run_timestamp":     true,
	"jst_refresher_last_success_timestamp": true,
	"jst_notifications_total":              true,
	"jst_notification_duration_seconds":    true,

	// Mock server metrics.
	"jst_mock_requests_total": true,

	// Recording rules.
	"jst:api_requests:rate5m":        true,
	"jst:api_errors:rate5m":          true,
	"jst:token_grants:rate5m":        true,
	"jst:token_grant_errors:rate5m":  true,
	"jst:token_cache_lookups:rate5m": true,
	"jst:refresher_failures:rate5m":  true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
