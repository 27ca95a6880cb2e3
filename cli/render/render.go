// Package render formats command results for the terminal.
//
// Three formats: json, table, and yaml. When no --format is given, a
// TTY gets table and a pipe gets json. Table layout is owned by the
// result types themselves: a result implements Table for row-shaped
// output, Summary for label/value output, or both (rows first, then
// the summary block). Results without a table shape fall back to
// indented JSON rather than guessing at a layout.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Field is one labeled value in a summary rendering.
type Field struct {
	Name  string
	Value string
}

// Summary is implemented by results rendered as label/value lines in
// table format, such as a rebuilt session or a version report.
type Summary interface {
	SummaryFields() []Field
}

// Table is implemented by results rendered as a header row plus data
// rows in table format, such as merged records or canonical tool calls.
// A type implementing both Table and Summary renders its rows first,
// then a blank line, then the summary block.
type Table interface {
	TableColumns() []string
	TableRows() [][]string
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context, applying the default
// format selection rules.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     os.Stdout,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

func (r *Renderer) renderTable(data any) error {
	tbl, hasRows := data.(Table)
	sum, hasSummary := data.(Summary)

	if !hasRows && !hasSummary {
		// No table shape declared; JSON beats guessing.
		return r.renderJSON(data)
	}

	if hasRows {
		if err := r.renderRows(tbl); err != nil {
			return err
		}
		if hasSummary {
			fmt.Fprintln(r.out)
		}
	}
	if hasSummary {
		return r.renderFields(sum.SummaryFields())
	}
	return nil
}

func (r *Renderer) renderRows(tbl Table) error {
	rows := tbl.TableRows()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(r.out, "(no results)")
		return err
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(tbl.TableColumns(), "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func (r *Renderer) renderFields(fields []Field) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(w, "%s:\t%s\n", f.Name, f.Value)
	}
	return w.Flush()
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
