package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary   JSONSummary    `json:"summary"`
	Exchanges []JSONExchange `json:"exchanges"`
	Duration  float64        `json:"duration"`
	Time      string         `json:"time"`
}

// JSONSummary counts exchanges by outcome
type JSONSummary struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// JSONExchange represents a single send
type JSONExchange struct {
	Method    string         `json:"method"`
	URL       string         `json:"url"`
	Adapter   string         `json:"adapter,omitempty"`
	Redirects int            `json:"redirects"`
	Error     *JSONError     `json:"error,omitempty"`
	Request   string         `json:"request,omitempty"`
	Response  *JSONResponse  `json:"response,omitempty"`
	Captures  map[string]any `json:"captures,omitempty"`
	Query     *JSONQuery     `json:"query,omitempty"`
}

// JSONError carries the message and its class
type JSONError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSONResponse represents response details
type JSONResponse struct {
	Version    string            `json:"version"`
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONQuery is the result of --query
type JSONQuery struct {
	Path  string `json:"path"`
	Found bool   `json:"found"`
	Value any    `json:"value,omitempty"`
}

// JSONFormatter collects exchanges and writes them as one JSON document
type JSONFormatter struct {
	writer    io.Writer
	verbose   bool
	exchanges []JSONExchange
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:    os.Stdout,
		exchanges: make([]JSONExchange, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithVerbose includes the raw request in every exchange.
func JSONWithVerbose(v bool) JSONOption {
	return func(f *JSONFormatter) {
		f.verbose = v
	}
}

func (f *JSONFormatter) FormatExchange(ex *Exchange) {
	out := JSONExchange{
		Method:    ex.Method,
		URL:       ex.URL,
		Adapter:   ex.Adapter,
		Redirects: ex.Redirects,
	}
	if f.verbose && len(ex.RawRequest) > 0 {
		out.Request = string(ex.RawRequest)
	}
	if ex.Err != nil {
		out.Error = &JSONError{Kind: ErrorKind(ex.Err), Message: ex.Err.Error()}
	}
	if r := ex.Response; r != nil {
		resp := &JSONResponse{
			Version:    r.Version,
			StatusCode: r.StatusCode,
			Status:     r.Status,
			Headers:    r.Headers.Map(),
			Duration:   float64(r.Duration.Milliseconds()),
		}
		if len(r.Body) > 0 {
			if gjson.ValidBytes(r.Body) {
				resp.Body = json.RawMessage(r.Body)
			} else {
				resp.Body = string(r.Body)
			}
		}
		out.Response = resp
	}
	if len(ex.Captures) > 0 {
		out.Captures = ex.Captures
	}
	if ex.Query != "" {
		out.Query = &JSONQuery{Path: ex.Query, Found: ex.QueryFound, Value: ex.QueryValue}
	}
	f.exchanges = append(f.exchanges, out)
}

func (f *JSONFormatter) FormatError(err error) {
	f.exchanges = append(f.exchanges, JSONExchange{
		Error: &JSONError{Kind: ErrorKind(err), Message: err.Error()},
	})
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	failed := 0
	for _, ex := range f.exchanges {
		if ex.Error != nil {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:  len(f.exchanges),
			Failed: failed,
		},
		Exchanges: f.exchanges,
		Duration:  float64(totalDuration.Milliseconds()),
		Time:      time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
