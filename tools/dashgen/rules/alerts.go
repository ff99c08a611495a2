package rules

const (
	severityCritical = "critical"
	severityWarning  = "warning"
)

// AlertRules returns alert rules for a running token keeper.
func AlertRules() PrometheusRule {
	return newPrometheusRule("jst-alerts", RuleGroup{
		Name: "jst-alerts",
		Rules: []Rule{
			alert("JstKeeperDown",
				`absent(up{job="jst"})`, "2m", severityCritical,
				"Token keeper is down",
				"The jst job has been absent for more than 2 minutes. Access tokens are not being refreshed."),
			alert("JstTokenRefreshFailing",
				`increase(jst_refresher_runs_total{outcome!="success"}[15m]) > 0`, "0m", severityWarning,
				"Access token refresh failed",
				"At least one scheduled refresh failed in the last 15 minutes."),
			alert("JstAccessTokenStale",
				`time() - jst_refresher_last_success_timestamp > 5400`, "5m", severityCritical,
				"Access token is close to expiry",
				"No refresh has succeeded for 90 minutes. Tokens expire after 7200 seconds."),
			alert("JstRefreshOverdue",
				`time() > jst_refresher_next_run_timestamp + 300`, "5m", severityWarning,
				"Scheduled token refresh is overdue",
				"The next scheduled refresh is more than 5 minutes late."),
			alert("JstHighAPIErrorRate",
				`jst:api_errors:rate5m / jst:api_requests:rate5m > 0.05`, "5m", severityWarning,
				"High open API error rate",
				"More than 5% of signed business requests failed over the last 5 minutes."),
			alert("JstTokenCacheErrors",
				`increase(jst_token_cache_errors_total[5m]) > 0`, "5m", severityWarning,
				"Token cache errors detected",
				"The token cache backend has been failing for more than 5 minutes."),
			alert("JstNotificationFailures",
				`increase(jst_notifications_total{outcome!="success"}[5m]) > 0`, "1m", severityWarning,
				"Notification delivery failures detected",
				"One or more refresh notifications (Discord webhooks) have failed to send."),
		},
	})
}
