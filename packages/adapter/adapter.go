// Package adapter defines the transport boundary used by the HTTP engine and
// provides two implementations: Socket, which speaks HTTP/1.x over a raw
// net.Conn, and Library, which delegates the exchange to net/http.
//
// An adapter is used once per hop: Connect, Write, Read, Close. Adapters are
// not safe for concurrent use.
package adapter

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
)

// Adapter moves one serialized HTTP exchange over some transport.
type Adapter interface {
	// SetOptions merges opts into the current configuration.
	SetOptions(opts Options) error
	// Options returns the effective configuration.
	Options() Options
	// Connect opens (or prepares) a connection. A zero timeout falls back to
	// the timeout option.
	Connect(host string, port int, secure bool, timeout time.Duration) error
	// Write sends one request. The headers are written as given.
	Write(method string, target *url.URL, version string, headers *header.Headers, body []byte) error
	// Read returns the raw bytes of exactly one response.
	Read() ([]byte, error)
	// Close releases the connection. Closing twice is not an error.
	Close() error
}

// HandleProvider exposes the underlying transport handle for diagnostics.
type HandleProvider interface {
	Handle() any
}

// NativeRedirector is implemented by adapters that can follow redirects
// themselves.
type NativeRedirector interface {
	SetNativeRedirects(enabled bool)
	NativeRedirects() bool
}

// Names lists the adapters New can build.
var Names = []string{"socket", "library"}

// New returns a fresh adapter by name.
func New(name string) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "socket":
		return NewSocket(), nil
	case "library", "curl":
		return NewLibrary(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}

// timeoutFor resolves the effective timeout for a Connect call.
func timeoutFor(explicit time.Duration, opts Options) time.Duration {
	if explicit > 0 {
		return explicit
	}
	if d, ok := opts.Seconds(OptTimeout); ok {
		return d
	}
	return DefaultTimeout
}
