package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseChunkSize parses a chunk-size line, ignoring chunk extensions.
func parseChunkSize(line string) (int64, error) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, malformed("empty chunk size")
	}
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil || n < 0 {
		return 0, malformed("invalid chunk size %q", line)
	}
	return n, nil
}

// copyChunked moves one chunked body from br to dst. When decode is false the
// raw framing (sizes, CRLFs, trailers) is copied as-is; when true only the
// payload bytes are written.
func copyChunked(dst *bytes.Buffer, br *bufio.Reader, decode bool) error {
	var raw *bytes.Buffer
	if !decode {
		raw = dst
	}
	for {
		line, err := readRawLine(br, raw)
		if err != nil {
			return chunkErr(err)
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return err
		}
		if size == 0 {
			// trailer section, discarded when decoding
			for {
				line, err := readRawLine(br, raw)
				if err != nil {
					return chunkErr(err)
				}
				if line == "" {
					return nil
				}
			}
		}
		if _, err := io.CopyN(dst, br, size); err != nil {
			return chunkErr(err)
		}
		end, err := readRawLine(br, raw)
		if err != nil {
			return chunkErr(err)
		}
		if end != "" {
			return malformed("expected CRLF after chunk data, got %q", end)
		}
	}
}

func chunkErr(err error) error {
	if err == io.EOF {
		return fmt.Errorf("%w: unexpected end of chunked body", ErrMalformed)
	}
	return err
}

// DecodeChunked decodes a complete chunked body.
func DecodeChunked(body []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := copyChunked(&out, bufio.NewReader(bytes.NewReader(body)), true); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeChunked frames body as a single chunk followed by the last-chunk.
func EncodeChunked(body []byte) []byte {
	var b bytes.Buffer
	if len(body) > 0 {
		fmt.Fprintf(&b, "%x\r\n", len(body))
		b.Write(body)
		b.WriteString("\r\n")
	}
	b.WriteString("0\r\n\r\n")
	return b.Bytes()
}
