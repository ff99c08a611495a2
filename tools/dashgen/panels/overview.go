package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
)

// KeeperUp returns a stat panel showing whether the token keeper is scraped.
func KeeperUp() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Keeper Up").
		Description("Scrape status of the token keeper (1 = up, 0 = down)").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(fmt.Sprintf(`up{%s}`, job), "", "A")).
		Thresholds(ThresholdsRedGreen(1)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone).
		TextMode(common.BigValueTextModeValue)
}

// LastRefresh returns a stat panel showing the age of the current access
// token. It turns red well before the token expires.
func LastRefresh() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Token Age").
		Description("Time since the last successful token refresh").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`time() - jst_refresher_last_success_timestamp{%s}`, job),
			"", "A",
		)).
		Unit("s").
		Thresholds(ThresholdsGreenYellowRed(TokenLifetime/2, TokenLifetime*3/4)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}

// NextRefresh returns a stat panel showing time until the next scheduled
// refresh.
func NextRefresh() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Next Refresh").
		Description("Time until the next scheduled token refresh").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`jst_refresher_next_run_timestamp{%s} - time()`, job),
			"", "A",
		)).
		Unit("s").
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}

// UptimeStat returns a stat panel showing process uptime.
func UptimeStat() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Uptime").
		Description("Time since process start").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`time() - process_start_time_seconds{%s}`, job),
			"", "A",
		)).
		Unit("s").
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemeThresholds()).
		GraphMode(common.BigValueGraphModeNone)
}
