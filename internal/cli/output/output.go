// Package output renders command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses the value of an --output flag.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// Print renders data in format f. Table output requires a TableRenderer;
// anything else falls back to JSON.
func Print(w io.Writer, f Format, data any) error {
	switch f {
	case FormatTable:
		if r, ok := data.(TableRenderer); ok {
			return PrintTable(w, r)
		}
		return PrintJSON(w, data)
	case FormatJSON:
		return PrintJSON(w, data)
	case FormatYAML:
		return PrintYAML(w, data)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// PrintJSON writes data as indented JSON.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintYAML writes data as YAML.
func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(data)
}

// Status prints a one-line result, green when ok and red otherwise.
func Status(w io.Writer, ok, color bool, msg string) {
	if !color {
		_, _ = fmt.Fprintln(w, msg)
		return
	}
	code := "32"
	if !ok {
		code = "31"
	}
	_, _ = fmt.Fprintf(w, "\033[%sm%s\033[0m\n", code, msg)
}
