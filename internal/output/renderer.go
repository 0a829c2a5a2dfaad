package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/atikulmunna/loupe/internal/model"
)

// NotApplicable is printed for means and percentiles with nothing to average.
const NotApplicable = "N/A"

// maxDetailRows caps the slow-request table in text mode; exports carry all rows.
const maxDetailRows = 20

// Renderer writes an analysis summary to an output stream.
type Renderer interface {
	Render(name string, sum model.Summary) error
}

// New returns the renderer for "text" or "json", writing to stdout.
func New(format string) Renderer {
	if strings.EqualFold(format, "json") {
		return NewJSONRenderer(os.Stdout)
	}
	return NewTextRenderer(os.Stdout)
}

// ---------------------------------------------------------------------------
// Text Renderer (styled terminal report)
// ---------------------------------------------------------------------------

var (
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleSection = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleValue   = lipgloss.NewStyle().Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleFaint   = lipgloss.NewStyle().Faint(true)
)

// TextRenderer prints a human-readable report.
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer returns a Renderer that writes a styled report to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(name string, sum model.Summary) error {
	var b strings.Builder

	b.WriteString(styleTitle.Render(fmt.Sprintf("%s (%s)", name, sum.Format)))
	b.WriteString("\n\n")
	writeKPIs(&b, sum.KPIs)

	if len(sum.TopSources) > 0 {
		section(&b, "Top sources")
		for i, row := range sum.TopSources {
			fmt.Fprintf(&b, "  %2d. %-40s %10d\n", i+1, row.Source, row.Count)
		}
	}

	section(&b, "Top targets by requests")
	writeTargets(&b, sum.TopTargets)

	section(&b, "Slowest targets by mean response time")
	writeTargets(&b, sum.SlowestTargets)

	section(&b, "Response time distribution (5 min)")
	fmt.Fprintf(&b, "  %-17s", "bucket")
	for _, label := range model.LatencyBuckets {
		fmt.Fprintf(&b, " %9s", label)
	}
	fmt.Fprintf(&b, " %9s\n", "total")
	for _, row := range sum.Histogram {
		fmt.Fprintf(&b, "  %-17s", row.Bucket)
		for _, c := range row.Counts {
			fmt.Fprintf(&b, " %9d", c)
		}
		fmt.Fprintf(&b, " %9d\n", row.Total)
	}

	section(&b, "Slow requests")
	writeSlow(&b, sum.SlowRequests)

	_, err := fmt.Fprintln(r.w, b.String())
	return err
}

func writeKPIs(b *strings.Builder, k model.KPIs) {
	kv := func(label, value string) {
		fmt.Fprintf(b, "  %s %s\n", styleLabel.Render(fmt.Sprintf("%-22s", label)), value)
	}
	kv("Total requests", styleValue.Render(fmt.Sprint(k.TotalRecords)))
	kv("Unique sources", fmt.Sprint(k.UniqueSources))
	kv("Unique targets", fmt.Sprint(k.UniqueTargets))

	rate := fmt.Sprintf("%.2f%% (%d)", k.ErrorRate*100, k.ErrorCount)
	if k.ErrorCount > 0 {
		rate = styleError.Render(rate)
	}
	kv("Error rate", rate)
	kv("Mean response time", Millis(k.MeanResponseTime))
	kv("p50 / p90 / p99", fmt.Sprintf("%s / %s / %s", Millis(k.P50ResponseTime), Millis(k.P90ResponseTime), Millis(k.P99ResponseTime)))
	peak := fmt.Sprint(k.PeakRate)
	if k.PeakRateKey != "" {
		peak += " at " + k.PeakRateKey
	}
	kv("Peak rate", peak)
	kv("Lines read / dropped", fmt.Sprintf("%d / %d", k.LinesRead, k.DroppedLines))
}

func writeTargets(b *strings.Builder, rows []model.TargetRow) {
	if len(rows) == 0 {
		b.WriteString(styleFaint.Render("  (none)") + "\n")
		return
	}
	for i, row := range rows {
		fmt.Fprintf(b, "  %2d. %-48s %10d %12s\n", i+1, row.Target, row.Count, Millis(row.MeanTime))
	}
}

func writeSlow(b *strings.Builder, rows []model.SlowRequest) {
	if len(rows) == 0 {
		b.WriteString(styleFaint.Render("  (none)") + "\n")
		return
	}
	shown := rows
	if len(shown) > maxDetailRows {
		shown = shown[:maxDetailRows]
	}
	for i, r := range shown {
		fmt.Fprintf(b, "  %3d. %-28s %-6s %-40s %12.2fms\n", i+1, r.Timestamp, r.Method, r.Target, r.ResponseTime*1000)
	}
	if len(rows) > len(shown) {
		b.WriteString(styleFaint.Render(fmt.Sprintf("  … %d more (use --export for the full table)", len(rows)-len(shown))) + "\n")
	}
}

func section(b *strings.Builder, title string) {
	b.WriteString("\n")
	b.WriteString(styleSection.Render(title))
	b.WriteString("\n")
}

// Millis formats an optional duration in seconds as milliseconds.
func Millis(seconds *float64) string {
	if seconds == nil {
		return NotApplicable
	}
	return fmt.Sprintf("%.2fms", *seconds*1000)
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each summary as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(name string, sum model.Summary) error {
	return r.enc.Encode(struct {
		Name    string        `json:"name"`
		Summary model.Summary `json:"summary"`
	}{name, sum})
}
