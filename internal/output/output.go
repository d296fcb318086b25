package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oriys/tower/internal/jobtracker"
	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "wide":
		return FormatWide
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// SetNoColor disables ANSI colors
func (p *Printer) SetNoColor(v bool) {
	p.noColor = v
}

// Print outputs data as JSON or YAML. Table formats fall back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatYAML:
		return p.printYAML(data)
	default:
		return p.printJSON(data)
	}
}

func (p *Printer) structured() bool {
	return p.format == FormatJSON || p.format == FormatYAML
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data any) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// Color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// Invocation is the printable outcome of one call.
type Invocation struct {
	RequestID  string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Method     string `json:"method" yaml:"method"`
	URL        string `json:"url" yaml:"url"`
	Status     int    `json:"status" yaml:"status"`
	StatusMsg  string `json:"status_msg,omitempty" yaml:"status_msg,omitempty"`
	Result     any    `json:"result,omitempty" yaml:"result,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

// PrintInvocation prints an invocation result
func (p *Printer) PrintInvocation(inv Invocation) error {
	if p.structured() {
		return p.Print(inv)
	}

	fmt.Fprintf(p.writer, "%s %s %s\n", p.Colorize(Bold, "Request:"), inv.Method, inv.URL)
	if inv.Error != "" {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Error:"), p.Colorize(Red, inv.Error))
		return nil
	}

	statusColor := Green
	switch {
	case inv.Status >= 500:
		statusColor = Red
	case inv.Status >= 300:
		statusColor = Yellow
	}
	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Status:"), p.Colorize(statusColor, fmt.Sprintf("%d", inv.Status)))
	if inv.StatusMsg != "" {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Message:"), inv.StatusMsg)
	}
	fmt.Fprintf(p.writer, "%s %d ms\n", p.Colorize(Bold, "Duration:"), inv.DurationMs)

	if inv.Result != nil {
		fmt.Fprintf(p.writer, "%s\n", p.Colorize(Bold, "Result:"))
		fmt.Fprintln(p.writer, prettyResult(inv.Result))
	}
	return nil
}

// prettyResult renders a raw body as indented JSON when it parses as JSON,
// and any decoded value as indented JSON.
func prettyResult(v any) string {
	if s, ok := v.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return s
		}
		v = parsed
	}
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(formatted)
}

// PrintWorkItems prints tracked work items
func (p *Printer) PrintWorkItems(records []*jobtracker.Record) error {
	if p.structured() {
		return p.Print(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(p.writer, "No work items found")
		return nil
	}

	w := p.TableWriter()
	if p.format == FormatWide {
		fmt.Fprintln(w, p.Colorize(Bold, "ID\tNAME\tSTATE\tSTATUS\tSTARTED\tFINISHED\tERROR"))
	} else {
		fmt.Fprintln(w, p.Colorize(Bold, "ID\tNAME\tSTATE\tSTATUS\tSTARTED"))
	}

	for _, r := range records {
		status := "-"
		if code, ok := r.Results["Status"]; ok {
			status = fmt.Sprintf("%v", code)
		}
		name := r.Name
		if name == "" {
			name = "-"
		}
		state := p.Colorize(stateColor(r.State), string(r.State))
		started := r.StartedAt.Format(time.RFC3339)
		if p.format == FormatWide {
			finished := "-"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format(time.RFC3339)
			}
			errText := r.Error
			if errText == "" {
				errText = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, name, state, status, started, finished, errText)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, name, state, status, started)
		}
	}
	return w.Flush()
}

func stateColor(s jobtracker.State) string {
	switch s {
	case jobtracker.StateCompleted:
		return Green
	case jobtracker.StateFailed:
		return Red
	case jobtracker.StateAborted:
		return Yellow
	default:
		return Cyan
	}
}

// PrintNames prints a single-column list under header
func (p *Printer) PrintNames(header string, names []string) error {
	if p.structured() {
		return p.Print(names)
	}
	if len(names) == 0 {
		fmt.Fprintf(p.writer, "No %s found\n", strings.ToLower(header))
		return nil
	}
	fmt.Fprintln(p.writer, p.Colorize(Bold, strings.ToUpper(header)))
	for _, n := range names {
		fmt.Fprintln(p.writer, n)
	}
	return nil
}

// Success prints a success message
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Green, "✓ ")+msg)
}

// Error prints an error message
func (p *Printer) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Red, "✗ ")+msg)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Yellow, "⚠ ")+msg)
}
