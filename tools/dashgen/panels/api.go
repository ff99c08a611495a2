package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RequestRate shows signed business requests per second by outcome.
func RequestRate() *timeseries.PanelBuilder {
	return series("Request Rate", "Signed business requests per second by outcome", common.GraphDrawStyleLine).
		WithTarget(PromQuery(`sum by (outcome) (rate(jst_api_requests_total[5m]))`, "{{outcome}}", "A")).
		Unit("reqps").
		Legend(TableLegend("mean", "max")).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// LatencyPercentiles shows p50, p95 and p99 business request latency.
func LatencyPercentiles() *timeseries.PanelBuilder {
	b := series("Latency Percentiles", "Signed business request duration percentiles", common.GraphDrawStyleLine)

	for i, q := range []string{"0.50", "0.95", "0.99"} {
		b = b.WithTarget(PromQuery(
			fmt.Sprintf(`histogram_quantile(%s, sum(rate(jst_api_request_duration_seconds_bucket[5m])) by (le))`, q),
			"p"+q[2:], string(rune('A'+i)),
		))
	}

	return b.
		Unit("s").
		Legend(TableLegend("mean", "max")).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// ErrorRate shows failed business requests as a percentage of all requests.
func ErrorRate() *timeseries.PanelBuilder {
	return series("Error Rate %", "Failed business requests as percentage of total requests", common.GraphDrawStyleLine).
		WithTarget(PromQuery(`jst:api_errors:rate5m / jst:api_requests:rate5m * 100`, "error %", "A")).
		Unit("percent").
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds())
}

// MockRequests shows mock server traffic by status.
func MockRequests() *timeseries.PanelBuilder {
	return series("Mock Server Requests", "Requests served by the mock open API server by status", common.GraphDrawStyleLine).
		Span(FullWidth).
		WithTarget(PromQuery(`sum by (status) (rate(jst_mock_requests_total[5m]))`, "{{status}}", "A")).
		Unit("reqps").
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}
