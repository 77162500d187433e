package adapter

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// InvalidConfigError is returned when configuration has the wrong shape.
type InvalidConfigError struct {
	Key string // empty for the top-level value
	Got string
}

func (e *InvalidConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid adapter configuration: array or map expected, got %s", e.Got)
	}
	return fmt.Sprintf("invalid adapter configuration: %q must be an array or map, got %s", e.Key, e.Got)
}

// NotConnectedError is returned when writing or reading without a connection.
type NotConnectedError struct {
	Op string
}

func (e *NotConnectedError) Error() string {
	op := e.Op
	if op == "" {
		op = "write"
	}
	return fmt.Sprintf("trying to %s but we are not connected", op)
}

// TransportError reports a failure below the HTTP layer: DNS, connect, TLS,
// proxy handshake, write or read. The engine never retries it.
type TransportError struct {
	Op       string
	Addr     string
	Timeout  bool
	After    time.Duration
	Received int64
	Err      error
}

func (e *TransportError) Error() string {
	prefix := e.Op
	if e.Addr != "" {
		prefix += " " + e.Addr
	}
	if e.Timeout {
		return fmt.Sprintf("%s: operation timed out after %d milliseconds with %d bytes received",
			prefix, e.After.Milliseconds(), e.Received)
	}
	if e.Err == nil {
		return prefix + ": transport failure"
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Partial reports whether a timeout hit after some bytes had already arrived.
func (e *TransportError) Partial() bool {
	return e.Timeout && e.Received > 0
}

// classify wraps a network error from op on addr.
func classify(op, addr string, timeout time.Duration, received int64, err error) *TransportError {
	te := &TransportError{Op: op, Addr: addr, Received: received, Err: err}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		te.Op = "dns"
		if dnsErr.IsTimeout {
			te.Timeout = true
			te.After = timeout
		}
		return te
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		te.Timeout = true
		te.After = timeout
	}
	return te
}
