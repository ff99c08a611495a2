package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/gauge"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// GrantsRate shows token endpoint calls per minute by grant type.
func GrantsRate() *timeseries.PanelBuilder {
	return series("Token Grants / min", "Token endpoint calls per minute by grant type", common.GraphDrawStyleLine).
		WithTarget(PromQuery(`jst:token_grants:rate5m * 60`, "{{grant_type}}", "A")).
		WithTarget(PromQuery(`jst:token_grant_errors:rate5m * 60`, "errors", "B")).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// CacheHitRatio shows the share of token lookups served from the cache.
func CacheHitRatio() *gauge.PanelBuilder {
	return gauge.NewPanelBuilder().
		Title("Cache Hit %").
		Description("Share of access token lookups restored from the cache").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(rate(jst_token_cache_hits_total[5m])) / jst:token_cache_lookups:rate5m * 100`,
			"", "A",
		)).
		Unit("percent").
		Min(0).
		Max(100).
		Thresholds(ThresholdsRedGreen(50)).
		ColorScheme(ColorSchemeThresholds())
}

// CacheErrors shows token cache failures by operation.
func CacheErrors() *timeseries.PanelBuilder {
	return series("Cache Errors", "Token cache backend failures by operation", common.GraphDrawStyleBars).
		WithTarget(PromQuery(`sum by (op) (increase(jst_token_cache_errors_total[5m]))`, "{{op}}", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds())
}
