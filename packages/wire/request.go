package wire

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
)

// DefaultVersion is the protocol version written when none is given.
const DefaultVersion = "HTTP/1.1"

// WriteRequest serializes a request: request line, header block, blank line
// and body. The method must be a token and the target must not contain
// whitespace or control characters, so the request line cannot be split.
func WriteRequest(w io.Writer, method, target, version string, h *header.Headers, body []byte) error {
	if !header.ValidName(method) {
		return malformed("invalid method %q", method)
	}
	if !validTarget(target) {
		return malformed("invalid request target %q", target)
	}
	if version == "" {
		version = DefaultVersion
	}
	if !validVersion(version) {
		return malformed("invalid HTTP version %q", version)
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s %s %s\r\n", method, target, version); err != nil {
		return err
	}
	for _, f := range h.Fields() {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", f.Name(), f.Value()); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := bw.Write(body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func validTarget(target string) bool {
	if target == "" {
		return false
	}
	for i := 0; i < len(target); i++ {
		c := target[i]
		if c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

// RequestTarget returns the request-target for u: origin-form for direct
// requests, absolute-form (without userinfo or fragment) for requests sent to
// a forward proxy.
func RequestTarget(u *url.URL, absolute bool) string {
	if !absolute {
		if u.Opaque != "" {
			return u.Opaque
		}
		target := u.EscapedPath()
		if target == "" {
			target = "/"
		}
		if u.RawQuery != "" {
			target += "?" + u.RawQuery
		}
		return target
	}
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(RequestTarget(u, false))
	return b.String()
}
