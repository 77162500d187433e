package http

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/wire"
)

// Response is a parsed reply. It is not modified after ParseResponse returns,
// apart from Duration which the client fills in.
type Response struct {
	Version    string
	StatusCode int
	Status     string
	Reason     string
	Headers    *header.Headers
	Body       []byte
	Duration   time.Duration
}

// ParseResponse parses the raw bytes returned by an adapter. Interim 1xx
// responses are skipped. Responses to HEAD, and 204 and 304 responses, have
// an empty body whatever their headers say. A gzip or deflate Content-Encoding
// is decoded and the header removed.
func ParseResponse(raw []byte, method string) (*Response, error) {
	br := bufio.NewReader(bytes.NewReader(raw))

	var (
		version string
		code    int
		reason  string
		h       *header.Headers
	)
	for {
		line, err := wire.ReadLine(br)
		if err != nil {
			if err == io.EOF {
				err = fmt.Errorf("%w: empty response", wire.ErrMalformed)
			}
			return nil, &ProtocolError{Op: "status line", Err: err}
		}
		version, code, reason, err = wire.ParseStatusLine(line)
		if err != nil {
			return nil, &ProtocolError{Op: "status line", Err: err}
		}
		h, err = readHeaderBlock(br)
		if err != nil {
			return nil, err
		}
		if code >= 100 && code < 200 && code != 101 {
			continue
		}
		break
	}

	chunked := wire.IsChunked(h.Get("Transfer-Encoding"))
	f := bodyFraming{mode: wire.ResponseFraming(method, code, chunked, h.Has("Content-Length"))}
	if f.mode == wire.FramingLength {
		n, err := wire.ParseContentLength(h.Get("Content-Length"))
		if err != nil {
			return nil, &ProtocolError{Op: "headers", Err: err}
		}
		f.length = n
	}
	body, err := readMessageBody(br, f)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Version:    version,
		StatusCode: code,
		Status:     strings.TrimSpace(strconv.Itoa(code) + " " + reason),
		Reason:     reason,
		Headers:    h,
		Body:       body,
	}
	if f.mode != wire.FramingNone {
		if err := resp.decodeContent(chunked); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// decodeContent undoes a single gzip or deflate coding. Unknown codings are
// left alone.
func (r *Response) decodeContent(chunked bool) error {
	coding := strings.ToLower(strings.TrimSpace(r.Headers.Get("Content-Encoding")))
	var (
		decoded []byte
		err     error
	)
	switch coding {
	case "gzip", "x-gzip":
		decoded, err = gunzip(r.Body)
	case "deflate":
		decoded, err = inflate(r.Body)
	default:
		return nil
	}
	if err != nil {
		return &ProtocolError{Op: "content decoding", Err: fmt.Errorf("%s: %w", coding, err)}
	}
	r.Body = decoded
	r.Headers.Del("Content-Encoding")
	if !chunked {
		_ = r.Headers.Set("Content-Length", strconv.Itoa(len(decoded)))
	}
	return nil
}

func gunzip(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// inflate accepts both zlib-wrapped and raw deflate streams since servers
// send either under "deflate".
func inflate(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, nil
	}
	if zr, err := zlib.NewReader(bytes.NewReader(b)); err == nil {
		defer zr.Close()
		return io.ReadAll(zr)
	}
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()
	return io.ReadAll(fr)
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Header returns the first value of a header, matched case-insensitively.
func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
