// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/jushuitan-go/tools/dashgen/panels"
)

// BuildOverview constructs the jst overview dashboard with all metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("JST Overview").
		Uid("jst-overview").
		Tags([]string{"jst", "jushuitan"}).
		Refresh("30s").
		Time("now-24h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.KeeperUp()).
		WithPanel(panels.LastRefresh()).
		WithPanel(panels.NextRefresh()).
		WithPanel(panels.UptimeStat()))

	b.WithRow(dashboard.NewRowBuilder("Open API").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	b.WithRow(dashboard.NewRowBuilder("Tokens").
		WithPanel(panels.GrantsRate()).
		WithPanel(panels.CacheHitRatio()).
		WithPanel(panels.CacheErrors()))

	b.WithRow(dashboard.NewRowBuilder("Refresher").
		WithPanel(panels.RefreshRuns()).
		WithPanel(panels.Notifications()).
		WithPanel(panels.NotificationLatency()))

	b.WithRow(dashboard.NewRowBuilder("Mock Server").
		WithPanel(panels.MockRequests()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
