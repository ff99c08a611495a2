package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RefreshRuns shows scheduled refreshes by outcome.
func RefreshRuns() *timeseries.PanelBuilder {
	return series("Refresh Runs", "Scheduled token refreshes by outcome", common.GraphDrawStyleBars).
		WithTarget(PromQuery(`sum by (outcome) (increase(jst_refresher_runs_total[1h]))`, "{{outcome}}", "A")).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// Notifications shows refresh notifications by event and outcome.
func Notifications() *timeseries.PanelBuilder {
	return series("Notifications", "Refresh failure and recovery webhooks by outcome", common.GraphDrawStyleBars).
		WithTarget(PromQuery(
			`sum by (event, outcome) (increase(jst_notifications_total[1h]))`,
			"{{event}} {{outcome}}", "A",
		)).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// NotificationLatency shows p95 webhook delivery time.
func NotificationLatency() *timeseries.PanelBuilder {
	return series("Notification Latency", "p95 webhook delivery duration", common.GraphDrawStyleLine).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(jst_notification_duration_seconds_bucket[1h])) by (le))`,
			"p95", "A",
		)).
		Unit("s").
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}
