package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var outputFormats = []string{outputTable, outputJSON, outputYAML}

// field is one row of table output.
type field struct {
	Key   string
	Value string
}

func (a *app) output() string {
	return a.v.GetString("output")
}

// print writes v as JSON or YAML, or fields as a table.
func (a *app) print(w io.Writer, v any, fields []field) error {
	return writeOutput(w, a.output(), v, fields)
}

func writeOutput(w io.Writer, format string, v any, fields []field) error {
	switch format {
	case outputJSON:
		return writeJSON(w, v)
	case outputYAML:
		return writeYAML(w, v)
	default:
		return writeTable(w, fields)
	}
}

func writeTable(w io.Writer, fields []field) error {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value")
	for _, f := range fields {
		if err := table.Append(f.Key, f.Value); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plain(v)); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

// resultFields flattens a result for table output. Keys of the data
// object are prefixed with "data.".
func resultFields(r jushuitan.Result) []field {
	var fields []field
	for _, k := range sortedKeys(r) {
		if data, ok := r[k].(map[string]any); ok && k == "data" {
			for _, dk := range sortedKeys(data) {
				fields = append(fields, field{Key: "data." + dk, Value: cell(data[dk])})
			}
			continue
		}
		fields = append(fields, field{Key: k, Value: cell(r[k])})
	}
	return fields
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

// cell renders a decoded JSON value as a single table cell.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	}
}

// plain converts json.Number values so YAML renders them as numbers.
func plain(v any) any {
	switch t := v.(type) {
	case jushuitan.Result:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case []any:
		return lo.Map(t, func(item any, _ int) any { return plain(item) })
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
