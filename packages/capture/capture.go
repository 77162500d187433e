package capture

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Source says which part of the response a capture reads.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

// Capture names one value to pull out of a response.
type Capture struct {
	Name   string
	Source Source
	Path   string // gjson path for bodies, header name for headers
}

// Parse reads a capture expression of the form "name=source[.path]" where
// source is body, header, status or duration.
//
//	id=body.data.id
//	etag=header.ETag
//	code=status
func Parse(expr string) (*Capture, error) {
	name, ref, _ := strings.Cut(expr, "=")
	name = strings.TrimSpace(name)
	ref = strings.TrimSpace(ref)

	source, path, _ := strings.Cut(ref, ".")
	c := &Capture{Name: name, Path: path}
	switch strings.ToLower(source) {
	case "body":
		c.Source = SourceBody
	case "header":
		if path == "" {
			return nil, fmt.Errorf("capture %q: header name required", expr)
		}
		c.Source = SourceHeader
	case "status":
		c.Source = SourceStatus
	case "duration":
		c.Source = SourceDuration
	default:
		return nil, fmt.Errorf("capture %q: unknown source %q (expected body, header, status or duration)", expr, source)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("capture %q: name required", expr)
	}
	return c, nil
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if resp.IsJSON() || looksLikeJSON(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.isJSON = true
	}
	return e
}

// looksLikeJSON accepts untyped bodies that are a JSON object or array.
func looksLikeJSON(b []byte) bool {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return gjson.ValidBytes(trimmed)
}

func (e *Extractor) Extract(capture *Capture) (any, bool) {
	switch capture.Source {
	case SourceBody:
		return e.extractFromBody(capture.Path)
	case SourceHeader:
		return e.extractFromHeader(capture.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

// Query evaluates a gjson path against the body.
func (e *Extractor) Query(path string) (any, bool) {
	return e.extractFromBody(path)
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.isJSON {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	values := e.response.Headers.Values(name)
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	default:
		return values, true
	}
}

func ExtractAll(resp *http.Response, captures []*Capture) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
