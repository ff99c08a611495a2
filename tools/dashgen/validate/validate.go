// Package validate checks PromQL expressions in generated dashboards and
// rules against the set of metrics jst exports.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/jushuitan-go/tools/dashgen/rules"
)

// histogramSuffixes are stripped before looking a series up.
var histogramSuffixes = []string{"_bucket", "_count", "_sum"}

// Result collects problems found in a set of expressions. Errors fail
// generation; Warnings are informational.
type Result struct {
	Errors   []error
	Warnings []string
}

// Ok reports whether no errors were found.
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

// Expr parses expr and checks every selected metric is known.
func (r *Result) Expr(where, expr string, known map[string]bool) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Errorf("%s: parsing %q: %w", where, expr, err))
		return
	}

	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		vs, ok := n.(*parser.VectorSelector)
		if !ok {
			return nil
		}
		if vs.Name == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: selector without metric name in %q", where, expr))
			return nil
		}
		if !known[baseName(vs.Name)] {
			r.Errors = append(r.Errors, fmt.Errorf("%s: unknown metric %q", where, vs.Name))
		}
		return nil
	})
}

func baseName(name string) string {
	for _, s := range histogramSuffixes {
		if base, ok := strings.CutSuffix(name, s); ok {
			return base
		}
	}
	return name
}

// dashboardJSON is the subset of the Grafana dashboard model that carries
// query expressions.
type dashboardJSON struct {
	Panels []panelJSON `json:"panels"`
}

type panelJSON struct {
	Title   string       `json:"title"`
	Panels  []panelJSON  `json:"panels"`
	Targets []targetJSON `json:"targets"`
}

type targetJSON struct {
	RefID string `json:"refId"`
	Expr  string `json:"expr"`
}

// Dashboard validates every Prometheus target in a marshaled dashboard.
func Dashboard(data []byte, known map[string]bool) (Result, error) {
	var dash dashboardJSON
	if err := json.Unmarshal(data, &dash); err != nil {
		return Result{}, fmt.Errorf("decoding dashboard: %w", err)
	}

	var res Result
	var walk func([]panelJSON)
	walk = func(panels []panelJSON) {
		for _, p := range panels {
			walk(p.Panels)
			for _, t := range p.Targets {
				if t.Expr == "" {
					res.Warnings = append(res.Warnings, fmt.Sprintf("panel %q target %s has no expression", p.Title, t.RefID))
					continue
				}
				res.Expr(fmt.Sprintf("panel %q target %s", p.Title, t.RefID), t.Expr, known)
			}
		}
	}
	walk(dash.Panels)
	return res, nil
}

// Rules validates every rule expression and checks recorded names are known.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result
	for _, g := range cr.Spec.Groups {
		for _, rule := range g.Rules {
			name := rule.Record
			if name == "" {
				name = rule.Alert
			}
			where := fmt.Sprintf("group %s rule %s", g.Name, name)
			if rule.Record != "" && !known[rule.Record] {
				res.Errors = append(res.Errors, fmt.Errorf("%s: recorded name is not listed as known", where))
			}
			res.Expr(where, rule.Expr, known)
		}
	}
	return res
}
