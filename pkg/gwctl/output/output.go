// Package output renders command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml in any case; empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// WriteObject prints obj as indented JSON or YAML. Table output has no generic
// form here; callers pick WriteValue or a dedicated table writer.
func WriteObject(w io.Writer, format Format, obj any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		if data, err = json.MarshalIndent(obj, "", "  "); err == nil {
			data = append(data, '\n')
		}
	case FormatYAML:
		data, err = yaml.Marshal(yamlNumbers(obj))
	case FormatTable:
		return fmt.Errorf("%s output needs a dedicated writer", format)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

// yamlNumbers turns json.Number leaves of decoded documents into int64 or
// float64 so YAML prints them unquoted.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = yamlNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = yamlNumbers(item)
		}
		return out
	default:
		return v
	}
}
