package http

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitwire/packages/wire"
)

// ProtocolError reports a message that could not be written or parsed as
// HTTP/1.x.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TooManyRedirectsError is returned when a redirect chain is longer than the
// configured maximum.
type TooManyRedirectsError struct {
	Max      int
	Location string
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("too many redirects: exceeded maximum of %d", e.Max)
}

// asProtocolError wraps framing errors from the wire layer and passes
// everything else through untouched.
func asProtocolError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, wire.ErrMalformed) {
		return &ProtocolError{Op: op, Err: err}
	}
	return err
}
