package wire

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// Framing describes how the body of a message is delimited.
type Framing int

const (
	FramingNone Framing = iota
	FramingChunked
	FramingLength
	FramingClose
)

// head is the subset of a header block needed to frame the body.
type head struct {
	code          int
	chunked       bool
	contentLength int64
	hasLength     bool
}

// ReadResponse reads exactly one response from br and returns its raw bytes,
// including any interim 1xx responses that precede it. The body is framed
// but not decoded, so chunked bodies keep their chunk framing.
func ReadResponse(br *bufio.Reader, method string) ([]byte, error) {
	var raw bytes.Buffer
	for {
		h, err := readHead(br, &raw)
		if err != nil {
			return nil, err
		}
		if h.code >= 100 && h.code < 200 && h.code != 101 {
			continue
		}
		if err := readBody(br, &raw, ResponseFraming(method, h.code, h.chunked, h.hasLength), h.contentLength); err != nil {
			return nil, err
		}
		return raw.Bytes(), nil
	}
}

func readHead(br *bufio.Reader, raw *bytes.Buffer) (head, error) {
	var h head
	line, err := readRawLine(br, raw)
	if err != nil {
		if err == io.EOF && raw.Len() == 0 {
			return h, malformed("empty response")
		}
		return h, err
	}
	_, h.code, _, err = ParseStatusLine(line)
	if err != nil {
		return h, err
	}
	start := raw.Len()
	for {
		line, err := readRawLine(br, raw)
		if err != nil {
			if err == io.EOF {
				return h, malformed("unexpected end of header block")
			}
			return h, err
		}
		if raw.Len()-start > MaxHeaderBytes {
			return h, malformed("header block exceeds %d bytes", MaxHeaderBytes)
		}
		if line == "" {
			return h, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return h, malformed("invalid header line %q", line)
		}
		value = strings.TrimSpace(value)
		switch {
		case strings.EqualFold(name, "Transfer-Encoding"):
			if IsChunked(value) {
				h.chunked = true
			}
		case strings.EqualFold(name, "Content-Length"):
			n, err := ParseContentLength(value)
			if err != nil {
				return h, err
			}
			h.contentLength = n
			h.hasLength = true
		}
	}
}

func readBody(br *bufio.Reader, raw *bytes.Buffer, framing Framing, length int64) error {
	switch framing {
	case FramingChunked:
		return copyChunked(raw, br, false)
	case FramingLength:
		if _, err := io.CopyN(raw, br, length); err != nil {
			if err == io.EOF {
				return malformed("body shorter than Content-Length %d", length)
			}
			return err
		}
	case FramingClose:
		if _, err := io.Copy(raw, br); err != nil {
			return err
		}
	}
	return nil
}

// ResponseFraming picks the body framing for a response. Chunked wins over
// Content-Length as required by RFC 7230 section 3.3.3.
func ResponseFraming(method string, code int, chunked, hasLength bool) Framing {
	switch {
	case !HasBody(method, code):
		return FramingNone
	case chunked:
		return FramingChunked
	case hasLength:
		return FramingLength
	default:
		return FramingClose
	}
}

// IsChunked reports whether a Transfer-Encoding value ends with chunked.
func IsChunked(te string) bool {
	codings := strings.Split(te, ",")
	last := strings.TrimSpace(codings[len(codings)-1])
	return strings.EqualFold(last, "chunked")
}

// ParseContentLength parses a Content-Length value.
func ParseContentLength(v string) (int64, error) {
	v = strings.TrimSpace(v)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, malformed("invalid Content-Length %q", v)
	}
	return n, nil
}
