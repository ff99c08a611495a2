package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/jushuitan-go/tools/dashgen/rules"
)

var known = map[string]bool{
	"jst_api_requests_total":           true,
	"jst_api_request_duration_seconds": true,
	"jst:api_requests:rate5m":          true,
}

func TestExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		expr      string
		wantErrs  int
		wantWarns int
	}{
		{name: "known counter", expr: `rate(jst_api_requests_total[5m])`},
		{name: "histogram bucket", expr: `histogram_quantile(0.9, sum(rate(jst_api_request_duration_seconds_bucket[5m])) by (le))`},
		{name: "recording rule", expr: `jst:api_requests:rate5m * 60`},
		{name: "unknown metric", expr: `rate(jst_missing_total[5m])`, wantErrs: 1},
		{name: "parse error", expr: `sum(rate(`, wantErrs: 1},
		{name: "nameless selector", expr: `{job="jst"}`, wantWarns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var res Result
			res.Expr("test", tt.expr, known)
			assert.Len(t, res.Errors, tt.wantErrs)
			assert.Len(t, res.Warnings, tt.wantWarns)
		})
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	data := []byte(`{"panels":[{"title":"row","panels":[
		{"title":"ok","targets":[{"refId":"A","expr":"jst_api_requests_total"}]},
		{"title":"bad","targets":[{"refId":"A","expr":"nope_total"},{"refId":"B"}]}
	]}]}`)

	res, err := Dashboard(data, known)
	require.NoError(t, err)
	assert.False(t, res.Ok())
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), `panel "bad" target A`)
	assert.Len(t, res.Warnings, 1)

	_, err = Dashboard([]byte("{"), known)
	require.Error(t, err)
}

func TestRules(t *testing.T) {
	t.Parallel()

	cr := rules.PrometheusRule{Spec: rules.PrometheusRuleSpec{Groups: []rules.RuleGroup{{
		Name: "g",
		Rules: []rules.Rule{
			{Record: "jst:api_requests:rate5m", Expr: `sum(rate(jst_api_requests_total[5m]))`},
			{Record: "jst:unlisted:rate5m", Expr: `sum(rate(jst_api_requests_total[5m]))`},
			{Alert: "A", Expr: `jst:api_requests:rate5m > 1`},
		},
	}}}}

	res := Rules(cr, known)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "rule jst:unlisted:rate5m")
}
