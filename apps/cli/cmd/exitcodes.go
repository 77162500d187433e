package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/hitwire/packages/output"
)

// Exit codes for hitwire CLI
const (
	// ExitSuccess indicates the request completed (or all thresholds passed)
	ExitSuccess = 0

	// ExitHTTPFailure indicates a 4xx/5xx status with --fail, or failed bench thresholds
	ExitHTTPFailure = 1

	// ExitProtocolError indicates a malformed response or too many redirects
	ExitProtocolError = 2

	// ExitConfigError indicates a configuration or header error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitTimeout indicates the request timed out
	ExitTimeout = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries an exit code out of a command. A nil err means the
// command already reported its outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status"
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeFor maps an error returned by a command to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch output.ErrorKind(err) {
	case output.KindTimeout:
		return ExitTimeout
	case output.KindTransport, output.KindNotConnected:
		return ExitNetworkError
	case output.KindProtocol, output.KindRedirects:
		return ExitProtocolError
	case output.KindConfig, output.KindHeader:
		return ExitConfigError
	default:
		return ExitHTTPFailure
	}
}
