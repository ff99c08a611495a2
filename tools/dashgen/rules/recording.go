package rules

// RecordingRules returns the rates shared by the dashboard and alert rules.
func RecordingRules() PrometheusRule {
	return newPrometheusRule("jst-recording-rules", RuleGroup{
		Name: "jst-recording",
		Rules: []Rule{
			record("jst:api_requests:rate5m",
				`sum(rate(jst_api_requests_total[5m]))`),
			record("jst:api_errors:rate5m",
				`sum(rate(jst_api_requests_total{outcome!="success"}[5m]))`),
			record("jst:token_grants:rate5m",
				`sum by (grant_type) (rate(jst_token_grants_total[5m]))`),
			record("jst:token_grant_errors:rate5m",
				`sum(rate(jst_token_grants_total{outcome!="success"}[5m]))`),
			record("jst:token_cache_lookups:rate5m",
				`sum(rate(jst_token_cache_hits_total[5m])) + sum(rate(jst_token_cache_misses_total[5m]))`),
			record("jst:refresher_failures:rate5m",
				`sum(rate(jst_refresher_runs_total{outcome!="success"}[5m]))`),
		},
	})
}
