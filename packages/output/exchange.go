package output

import (
	"errors"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/adapter"
	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Exchange is one completed (or failed) send as the CLI reports it.
type Exchange struct {
	Method     string
	URL        string
	Adapter    string
	RawRequest []byte
	Response   *http.Response
	Redirects  int
	Captures   map[string]any
	Query      string
	QueryValue any
	QueryFound bool
	Err        error
}

// Formatter renders exchanges.
type Formatter interface {
	FormatExchange(ex *Exchange)
	FormatError(err error)
}

// Flushable is implemented by formatters that buffer until the end of a run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Error kinds reported by ErrorKind.
const (
	KindTimeout      = "timeout"
	KindTransport    = "transport"
	KindNotConnected = "not_connected"
	KindProtocol     = "protocol"
	KindRedirects    = "too_many_redirects"
	KindHeader       = "invalid_header"
	KindConfig       = "invalid_config"
	KindOther        = "error"
)

// ErrorKind names the class of err for display and exit codes.
func ErrorKind(err error) string {
	var (
		te  *adapter.TransportError
		nc  *adapter.NotConnectedError
		ic  *adapter.InvalidConfigError
		pe  *http.ProtocolError
		tmr *http.TooManyRedirectsError
		ih  *header.InvalidHeaderError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		if te.Timeout {
			return KindTimeout
		}
		return KindTransport
	case errors.As(err, &nc):
		return KindNotConnected
	case errors.As(err, &ic):
		return KindConfig
	case errors.As(err, &tmr):
		return KindRedirects
	case errors.As(err, &pe):
		return KindProtocol
	case errors.As(err, &ih):
		return KindHeader
	default:
		return KindOther
	}
}
