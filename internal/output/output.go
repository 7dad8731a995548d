// Package output renders assembled reports in the formats wp-cli users expect.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"wpmu/internal/report"
)

// Format is an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatCount Format = "count"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatCount, FormatYAML}

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat resolves a case-insensitive format name. An empty name selects
// the table format.
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatTable, nil
	}
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

// Extension is the file extension used when a report is saved or uploaded.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// ContentType is the MIME type of the rendered output.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/plain"
	}
}

// Render writes rep to w in the given format.
func Render(w io.Writer, format Format, rep *report.Report) error {
	switch format {
	case FormatTable, "":
		return writeTable(w, rep)
	case FormatCSV:
		return writeCSV(w, rep)
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	case FormatCount:
		_, err := fmt.Fprintf(w, "%d\n", len(rep.Rows))
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// cellString renders a cell for the text based formats. nil becomes empty.
func cellString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
