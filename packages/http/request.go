package http

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/wire"
)

type Request struct {
	Method      string
	URL         string
	Version     string
	Headers     *header.Headers
	Body        []byte
	BodyStream  io.Reader // drained once at send time
	QueryParams map[string]string
	PostParams  map[string]string
	Timeout     time.Duration
	Auth        *Credentials
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      method,
		URL:         requestURL,
		Headers:     header.NewHeaders(),
		QueryParams: make(map[string]string),
		PostParams:  make(map[string]string),
	}
}

// SetHeader validates and sets a header, replacing any field with the same
// name.
func (r *Request) SetHeader(key, value string) error {
	if r.Headers == nil {
		r.Headers = header.NewHeaders()
	}
	return r.Headers.Set(key, value)
}

// AddHeader validates and appends a header without replacing existing ones.
func (r *Request) AddHeader(key, value string) error {
	if r.Headers == nil {
		r.Headers = header.NewHeaders()
	}
	return r.Headers.Add(key, value)
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetBodyString(body string) *Request {
	r.Body = []byte(body)
	return r
}

// SetBodyStream sets a reader that supplies the body. It is read to the end
// once, at send time.
func (r *Request) SetBodyStream(rd io.Reader) *Request {
	r.BodyStream = rd
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	if r.QueryParams == nil {
		r.QueryParams = make(map[string]string)
	}
	r.QueryParams[key] = value
	return r
}

func (r *Request) SetPostParam(key, value string) *Request {
	if r.PostParams == nil {
		r.PostParams = make(map[string]string)
	}
	r.PostParams[key] = value
	return r
}

// SetAuth attaches per-request credentials, overriding the client's.
func (r *Request) SetAuth(user, password string, scheme AuthScheme) *Request {
	r.Auth = &Credentials{Username: user, Password: password, Scheme: scheme}
	return r
}

// BuildURL returns the URL with QueryParams merged into its query string.
func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// payload returns the request body and, for form posts, the content type to
// declare. A BodyStream is drained into Body so that redirects can replay it.
func (r *Request) payload() ([]byte, string, error) {
	if r.BodyStream != nil {
		data, err := io.ReadAll(r.BodyStream)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read body stream: %w", err)
		}
		r.Body = data
		r.BodyStream = nil
	}
	if len(r.Body) > 0 {
		return r.Body, "", nil
	}
	if len(r.PostParams) > 0 {
		form := url.Values{}
		for k, v := range r.PostParams {
			form.Set(k, v)
		}
		return []byte(form.Encode()), "application/x-www-form-urlencoded", nil
	}
	return nil, "", nil
}

// Marshal renders the request as it would appear on the wire with an
// origin-form target.
func (r *Request) Marshal() ([]byte, error) {
	u, err := url.Parse(r.BuildURL())
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	body, contentType, err := r.payload()
	if err != nil {
		return nil, err
	}

	h := r.Headers.Clone()
	if !h.Has("Host") && u.Host != "" {
		if err := h.Set("Host", u.Host); err != nil {
			return nil, err
		}
	}
	if contentType != "" && !h.Has("Content-Type") {
		_ = h.Set("Content-Type", contentType)
	}
	if len(body) > 0 && !h.Has("Content-Length") {
		_ = h.Set("Content-Length", fmt.Sprint(len(body)))
	}

	var buf bytes.Buffer
	method := strings.ToUpper(r.Method)
	if err := wire.WriteRequest(&buf, method, wire.RequestTarget(u, false), r.Version, h, body); err != nil {
		return nil, asProtocolError("marshal", err)
	}
	return buf.Bytes(), nil
}

// ParseRequest parses the wire form of a request. Origin-form targets are
// resolved against the Host header with an http scheme.
func ParseRequest(raw []byte) (*Request, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	line, err := wire.ReadLine(br)
	if err != nil {
		return nil, &ProtocolError{Op: "request line", Err: err}
	}
	method, target, version, err := wire.ParseRequestLine(line)
	if err != nil {
		return nil, &ProtocolError{Op: "request line", Err: err}
	}

	h, err := readHeaderBlock(br)
	if err != nil {
		return nil, err
	}

	framing, err := requestFraming(h)
	if err != nil {
		return nil, err
	}
	body, err := readMessageBody(br, framing)
	if err != nil {
		return nil, err
	}

	requestURL := target
	if !strings.Contains(target, "://") {
		requestURL = "http://" + h.Get("Host") + target
	}

	return &Request{
		Method:      method,
		URL:         requestURL,
		Version:     version,
		Headers:     h,
		Body:        body,
		QueryParams: make(map[string]string),
		PostParams:  make(map[string]string),
	}, nil
}

func readHeaderBlock(br *bufio.Reader) (*header.Headers, error) {
	h := header.NewHeaders()
	for {
		line, err := wire.ReadLine(br)
		if err != nil {
			if err == io.EOF {
				return nil, &ProtocolError{Op: "headers", Err: fmt.Errorf("%w: unexpected end of header block", wire.ErrMalformed)}
			}
			return nil, &ProtocolError{Op: "headers", Err: err}
		}
		if line == "" {
			return h, nil
		}
		if err := h.AddLine(line); err != nil {
			return nil, &ProtocolError{Op: "headers", Err: err}
		}
	}
}

type bodyFraming struct {
	mode   wire.Framing
	length int64
}

// requestFraming picks body framing for a request. Without Content-Length or
// chunked coding a request has no body.
func requestFraming(h *header.Headers) (bodyFraming, error) {
	if wire.IsChunked(h.Get("Transfer-Encoding")) {
		return bodyFraming{mode: wire.FramingChunked}, nil
	}
	if h.Has("Content-Length") {
		n, err := wire.ParseContentLength(h.Get("Content-Length"))
		if err != nil {
			return bodyFraming{}, &ProtocolError{Op: "headers", Err: err}
		}
		return bodyFraming{mode: wire.FramingLength, length: n}, nil
	}
	return bodyFraming{mode: wire.FramingNone}, nil
}

func readMessageBody(br *bufio.Reader, f bodyFraming) ([]byte, error) {
	switch f.mode {
	case wire.FramingNone:
		return nil, nil
	case wire.FramingChunked:
		rest, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		body, err := wire.DecodeChunked(rest)
		if err != nil {
			return nil, &ProtocolError{Op: "chunked body", Err: err}
		}
		return body, nil
	case wire.FramingLength:
		body := make([]byte, f.length)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, &ProtocolError{Op: "body", Err: fmt.Errorf("%w: body shorter than Content-Length %d", wire.ErrMalformed, f.length)}
		}
		return body, nil
	default:
		return io.ReadAll(br)
	}
}

// ParseFormBody decodes an application/x-www-form-urlencoded body.
func ParseFormBody(body string) map[string]string {
	result := make(map[string]string)
	pairs := strings.Split(body, "&")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			key, _ := url.QueryUnescape(kv[0])
			value, _ := url.QueryUnescape(kv[1])
			result[key] = value
		}
	}
	return result
}

// sortedKeys is used wherever map iteration order would leak into output.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
