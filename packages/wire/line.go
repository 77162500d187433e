package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxLineBytes bounds a single status, header, chunk-size or trailer line.
	MaxLineBytes = 8 << 10
	// MaxHeaderBytes bounds the whole header block of one message.
	MaxHeaderBytes = 64 << 10
)

// ErrMalformed is wrapped by every framing error produced by this package.
var ErrMalformed = errors.New("malformed HTTP message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// readRawLine reads one line including its terminator, appending the raw bytes
// to raw when raw is non-nil, and returns the line without CR/LF.
func readRawLine(br *bufio.Reader, raw *bytes.Buffer) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineBytes {
			return "", malformed("line exceeds %d bytes", MaxLineBytes)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if raw != nil {
				raw.Write(line)
			}
			return "", err
		}
		break
	}
	if raw != nil {
		raw.Write(line)
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

// ReadLine reads one CRLF or LF terminated line and strips the terminator.
func ReadLine(br *bufio.Reader) (string, error) {
	return readRawLine(br, nil)
}

// ParseStatusLine splits "HTTP/1.1 200 OK" into its parts. The reason phrase
// may be empty or missing.
func ParseStatusLine(line string) (version string, code int, reason string, err error) {
	version, rest, ok := strings.Cut(line, " ")
	if !ok {
		return "", 0, "", malformed("invalid status line %q", line)
	}
	if !validVersion(version) {
		return "", 0, "", malformed("invalid HTTP version %q", version)
	}
	codeStr, reason, _ := strings.Cut(rest, " ")
	if len(codeStr) != 3 {
		return "", 0, "", malformed("invalid status code %q", codeStr)
	}
	code, err = strconv.Atoi(codeStr)
	if err != nil || code < 100 {
		return "", 0, "", malformed("invalid status code %q", codeStr)
	}
	return version, code, reason, nil
}

// ParseRequestLine splits "GET /path HTTP/1.1" into its parts.
func ParseRequestLine(line string) (method, target, version string, err error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", malformed("invalid request line %q", line)
	}
	if !validVersion(parts[2]) {
		return "", "", "", malformed("invalid HTTP version %q", parts[2])
	}
	return parts[0], parts[1], parts[2], nil
}

// validVersion accepts "HTTP/" DIGIT "." DIGIT.
func validVersion(v string) bool {
	if len(v) != 8 || !strings.HasPrefix(v, "HTTP/") {
		return false
	}
	return isDigit(v[5]) && v[6] == '.' && isDigit(v[7])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// HasBody reports whether a response to method with the given status carries
// a message body at all.
func HasBody(method string, code int) bool {
	if strings.EqualFold(method, "HEAD") {
		return false
	}
	if code >= 100 && code < 200 {
		return false
	}
	if strings.EqualFold(method, "CONNECT") && code >= 200 && code < 300 {
		return false
	}
	return code != 204 && code != 304
}
