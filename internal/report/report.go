// Package report renders suggestion lookups for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"
)

// Format selects an output renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("report: unknown format %q (want text or json)", s)
}

// Result is one completed lookup.
type Result struct {
	Query       string
	Region      string
	Platform    string
	Suggestions []string
	Duration    time.Duration
}

// Write renders r in the given format.
func Write(w io.Writer, f Format, r Result) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatText:
		return WriteText(w, r)
	}
	return fmt.Errorf("report: unknown format %q", f)
}

// WriteJSON writes the bare suggestion array, exactly as the API returns it.
func WriteJSON(w io.Writer, r Result) error {
	list := r.Suggestions
	if list == nil {
		list = []string{}
	}
	if err := json.NewEncoder(w).Encode(list); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

var textTmpl = template.Must(template.New("textReport").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(
	`Suggestions for "{{.Query}}" on {{.Platform}}{{if .Region}} ({{.Region}}){{end}}
{{- range $i, $s := .Suggestions}}
{{printf "%3d" (inc $i)}}. {{$s}}
{{- else}}
  (none)
{{- end}}
{{len .Suggestions}} results in {{.Duration}}
`))

// WriteText writes a numbered, human-readable list.
func WriteText(w io.Writer, r Result) error {
	if err := textTmpl.Execute(w, r); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
