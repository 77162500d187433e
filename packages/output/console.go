package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case []string:
		return strings.Join(val, ", ")
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer      io.Writer
	verbose     bool
	noColor     bool
	showHeaders bool
	showBody    bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer:   os.Stdout,
		showBody: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose also prints the raw request as sent.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func WithHeaders(show bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.showHeaders = show
	}
}

func WithBody(show bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.showBody = show
	}
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgYellow, color.Bold)
	case code >= 300:
		return color.New(color.FgCyan, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func (f *ConsoleFormatter) FormatExchange(ex *Exchange) {
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if f.verbose && len(ex.RawRequest) > 0 {
		head, _, _ := strings.Cut(string(ex.RawRequest), "\r\n\r\n")
		for _, line := range strings.Split(head, "\r\n") {
			fmt.Fprintf(f.writer, "%s %s\n", faint(">"), line)
		}
		fmt.Fprintf(f.writer, "%s\n", faint(">"))
	}

	if ex.Err != nil {
		f.FormatError(ex.Err)
		return
	}
	resp := ex.Response
	if resp == nil {
		return
	}

	meta := fmt.Sprintf("(%dms", resp.DurationMs())
	if ex.Adapter != "" {
		meta += ", " + ex.Adapter
	}
	switch ex.Redirects {
	case 0:
	case 1:
		meta += ", 1 redirect"
	default:
		meta += fmt.Sprintf(", %d redirects", ex.Redirects)
	}
	meta += ")"
	fmt.Fprintf(f.writer, "%s %s %s\n", bold(resp.Version), statusColor(resp.StatusCode).Sprint(resp.Status), cyan(meta))

	if f.showHeaders || f.verbose {
		for _, field := range resp.Headers.Fields() {
			fmt.Fprintf(f.writer, "%s %s\n", faint("<"), field.String())
		}
	}

	if ex.Query != "" {
		if !ex.QueryFound {
			fmt.Fprintf(f.writer, "%s %s\n", color.YellowString("no match for"), ex.Query)
		} else {
			fmt.Fprintf(f.writer, "%s = %s\n", bold(ex.Query), formatValue(ex.QueryValue, 500))
		}
	} else if f.showBody && len(resp.Body) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", prettyBody(resp.Body, resp.IsJSON()))
	}

	if len(ex.Captures) > 0 {
		fmt.Fprintf(f.writer, "\nCaptures:\n")
		names := make([]string, 0, len(ex.Captures))
		for name := range ex.Captures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(f.writer, "  %s = %s\n", name, formatValue(ex.Captures[name], 100))
		}
	}
}

// prettyBody indents JSON bodies and leaves everything else alone.
func prettyBody(body []byte, isJSON bool) string {
	if isJSON && gjson.ValidBytes(body) {
		return strings.TrimRight(gjson.GetBytes(body, "@pretty").Raw, "\n")
	}
	return strings.TrimRight(string(body), "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	kind := ErrorKind(err)
	if kind == KindOther || kind == "" {
		fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
		return
	}
	fmt.Fprintf(f.writer, "%s %v %s\n", red("Error:"), err, color.New(color.Faint).Sprintf("[%s]", kind))
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitwire"), version)
}
