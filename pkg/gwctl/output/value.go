package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// NoResults is printed for an empty array.
const NoResults = "(no results)"

// WriteValue renders decoded JSON. Objects become KEY/VALUE rows sorted by key,
// arrays of objects become one column per key, anything else is printed as is.
func WriteValue(w io.Writer, v any) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return writeKeyValues(w, t)
	case []any:
		return writeRows(w, t)
	default:
		_, err := fmt.Fprintln(w, Stringify(t))
		return err
	}
}

func writeKeyValues(w io.Writer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tVALUE")
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, Stringify(obj[k]))
	}
	return tw.Flush()
}

func writeRows(w io.Writer, arr []any) error {
	if len(arr) == 0 {
		_, err := fmt.Fprintln(w, NoResults)
		return err
	}
	seen := map[string]bool{}
	var cols []string
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			for k := range obj {
				if !seen[k] {
					seen[k] = true
					cols = append(cols, k)
				}
			}
		}
	}
	if len(cols) == 0 {
		data, err := json.MarshalIndent(arr, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	sort.Strings(cols)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(c)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = Stringify(obj[c])
		}
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Stringify renders one JSON value as a table cell. Arrays of scalars are
// joined with commas; nested objects fall back to compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case string, bool, json.Number, float64:
				parts = append(parts, Stringify(item))
			default:
				return compactJSON(t)
			}
		}
		return strings.Join(parts, ",")
	default:
		return compactJSON(t)
	}
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
