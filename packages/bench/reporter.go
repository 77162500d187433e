package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter writes the run header, the live progress line and the summary.
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool
	verbose    bool
	version    string

	good  *color.Color
	bad   *color.Color
	warn  *color.Color
	label *color.Color
	title *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live progress line
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// WithVerbose adds the per-outcome breakdown to the summary
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// WithVersion sets the version printed in the header
func WithVersion(version string) ReporterOption {
	return func(r *Reporter) {
		r.version = version
	}
}

// NewReporter creates a new reporter writing to stdout unless WithWriter is given.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	if r.noColor {
		color.NoColor = true
	}
	r.good = color.New(color.FgGreen)
	r.bad = color.New(color.FgRed)
	r.warn = color.New(color.FgYellow)
	r.label = color.New(color.FgCyan)
	r.title = color.New(color.Bold)
	return r
}

func (r *Reporter) section(name string) {
	fmt.Fprintln(r.writer)
	r.title.Fprintln(r.writer, name)
}

// row prints one aligned "Label:  value" line of the summary.
func (r *Reporter) row(name, value string) {
	fmt.Fprintf(r.writer, "%-12s%s\n", name+":", value)
}

// Header prints the target and the run shape.
func (r *Reporter) Header(method, target string, config *Config) {
	r.section("hitwire bench " + r.version)
	fmt.Fprintln(r.writer)
	r.label.Fprintf(r.writer, "Target: %s %s\n", method, target)

	shape := []string{}
	if config.Requests > 0 {
		shape = append(shape, "Requests: "+strconv.Itoa(config.Requests))
	}
	if config.Duration > 0 {
		shape = append(shape, "Duration: "+config.Duration.String())
	}
	shape = append(shape, "Workers: "+strconv.Itoa(config.Workers))
	if config.Rate > 0 {
		shape = append(shape, "Rate: "+formatFloat(config.Rate)+" req/s")
	}
	fmt.Fprintln(r.writer, strings.Join(shape, " | "))
	fmt.Fprintln(r.writer)
}

// Warmup announces the unmeasured warmup phase.
func (r *Reporter) Warmup(perWorker int) {
	fmt.Fprintf(r.writer, "Warming up (%d request(s) per worker)...\n", perWorker)
}

// Progress rewrites a single status line
func (r *Reporter) Progress(stats CurrentStats, config *Config) {
	if r.noProgress {
		return
	}
	done := formatNumber(stats.Total)
	if config.Requests > 0 {
		done += "/" + formatNumber(int64(config.Requests))
	}
	fmt.Fprintf(r.writer, "\r\033[K%s sent | %s failed | %.1f req/s | p50 %s | p99 %s | %s",
		done, formatNumber(stats.Errors), stats.RPS,
		millis(stats.P50)+"ms", millis(stats.P99)+"ms", stats.Elapsed.Round(100*time.Millisecond))
}

// ClearProgress clears the progress line
func (r *Reporter) ClearProgress() {
	if !r.noProgress {
		fmt.Fprint(r.writer, "\r\033[K")
	}
}

func percentOf(n int64, rate float64, c *color.Color) string {
	count := formatNumber(n)
	if c != nil && n > 0 {
		count = c.Sprint(count)
	}
	return fmt.Sprintf("%s (%.1f%%)", count, rate*100)
}

// Summary prints the final counts, latency distribution and threshold verdicts.
func (r *Reporter) Summary(summary *Summary, thresholdResults []ThresholdResult) {
	r.section("BENCH SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	r.row("Duration", summary.Duration.Round(time.Millisecond).String())
	r.row("Total", fmt.Sprintf("%s requests (%.1f req/s)", r.title.Sprint(formatNumber(summary.TotalRequests)), summary.RPS))
	r.row("Success", percentOf(summary.SuccessCount, summary.SuccessRate, r.good))
	r.row("Failed", percentOf(summary.ErrorCount, summary.ErrorRate, r.bad))
	if summary.TimeoutCount > 0 {
		r.row("Timeouts", r.warn.Sprint(formatNumber(summary.TimeoutCount)))
	}
	if summary.Redirects > 0 {
		r.row("Redirects", formatNumber(summary.Redirects))
	}

	r.section("LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50 %s | p95 %s | p99 %s | max %s\n",
		millis(summary.P50), millis(summary.P95), millis(summary.P99), millis(summary.Max))
	fmt.Fprintf(r.writer, "  min %s | mean %s | stddev %s\n",
		millis(summary.Min), millis(summary.Mean), millis(summary.StdDev))

	if r.verbose && len(summary.Outcomes) > 0 {
		r.section("OUTCOMES")
		for _, o := range summary.Outcomes {
			fmt.Fprintf(r.writer, "  %-10s %8s  p50 %sms  p99 %sms\n",
				o.Name, formatNumber(o.Count), millis(o.P50), millis(o.P99))
		}
	}

	if len(thresholdResults) > 0 {
		r.section("THRESHOLDS")
		failed := 0
		for _, tr := range thresholdResults {
			mark := r.good.Sprint("PASS")
			if !tr.Passed {
				mark = r.bad.Sprint("FAIL")
				failed++
			}
			fmt.Fprintf(r.writer, "  %s %s %s (actual %s)\n", mark, tr.Name, tr.Expected, tr.Actual)
		}
		fmt.Fprintln(r.writer)
		if failed == 0 {
			r.good.Fprintln(r.writer, "All thresholds passed")
		} else {
			r.bad.Fprintf(r.writer, "%d of %d thresholds failed\n", failed, len(thresholdResults))
		}
	}
	fmt.Fprintln(r.writer)
}

type jsonCounts struct {
	Total     int64 `json:"total"`
	Success   int64 `json:"success"`
	Failed    int64 `json:"failed"`
	Timeouts  int64 `json:"timeouts"`
	Redirects int64 `json:"redirects"`
}

type jsonRates struct {
	RPS         float64 `json:"rps"`
	SuccessRate float64 `json:"successRate"`
	ErrorRate   float64 `json:"errorRate"`
}

// jsonLatency holds milliseconds.
type jsonLatency struct {
	P50    int64 `json:"p50"`
	P95    int64 `json:"p95"`
	P99    int64 `json:"p99"`
	Min    int64 `json:"min"`
	Max    int64 `json:"max"`
	Mean   int64 `json:"mean"`
	StdDev int64 `json:"stddev"`
}

type jsonOutcome struct {
	Count int64 `json:"count"`
	P50   int64 `json:"p50"`
	P99   int64 `json:"p99"`
	Mean  int64 `json:"mean"`
}

type jsonThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type jsonReport struct {
	Duration   string                 `json:"duration"`
	Requests   jsonCounts             `json:"requests"`
	Rates      jsonRates              `json:"rates"`
	Latency    jsonLatency            `json:"latency"`
	Thresholds []jsonThreshold        `json:"thresholds,omitempty"`
	Outcomes   map[string]jsonOutcome `json:"outcomes,omitempty"`
}

// JSONSummary writes the summary as one indented JSON document.
func (r *Reporter) JSONSummary(summary *Summary, thresholdResults []ThresholdResult) error {
	report := jsonReport{
		Duration: summary.Duration.String(),
		Requests: jsonCounts{
			Total:     summary.TotalRequests,
			Success:   summary.SuccessCount,
			Failed:    summary.ErrorCount,
			Timeouts:  summary.TimeoutCount,
			Redirects: summary.Redirects,
		},
		Rates: jsonRates{RPS: summary.RPS, SuccessRate: summary.SuccessRate, ErrorRate: summary.ErrorRate},
		Latency: jsonLatency{
			P50:    summary.P50.Milliseconds(),
			P95:    summary.P95.Milliseconds(),
			P99:    summary.P99.Milliseconds(),
			Min:    summary.Min.Milliseconds(),
			Max:    summary.Max.Milliseconds(),
			Mean:   summary.Mean.Milliseconds(),
			StdDev: summary.StdDev.Milliseconds(),
		},
	}
	for _, tr := range thresholdResults {
		report.Thresholds = append(report.Thresholds, jsonThreshold(tr))
	}
	if len(summary.Outcomes) > 0 {
		report.Outcomes = make(map[string]jsonOutcome, len(summary.Outcomes))
		for _, o := range summary.Outcomes {
			report.Outcomes[o.Name] = jsonOutcome{
				Count: o.Count,
				P50:   o.P50.Milliseconds(),
				P99:   o.P99.Milliseconds(),
				Mean:  o.Mean.Milliseconds(),
			}
		}
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// millis renders d in milliseconds with precision that shrinks as d grows.
func millis(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	switch {
	case ms < 1:
		return strconv.FormatFloat(ms, 'f', 2, 64)
	case ms < 10:
		return strconv.FormatFloat(ms, 'f', 1, 64)
	default:
		return strconv.FormatFloat(ms, 'f', 0, 64)
	}
}

// formatNumber groups digits in thousands: 1234567 -> "1,234,567".
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
