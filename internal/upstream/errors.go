package upstream

import "fmt"

// statusError reports a non-200 answer from the upstream server. The proxy
// surfaces the upstream's own status code to the client.
type statusError struct {
	code   int
	detail string
}

func (e statusError) Error() string {
	return fmt.Sprintf("upstream error: %d - %s", e.code, e.detail)
}

// StatusCode lets the HTTP layer map the error without importing this package's internals.
func (e statusError) StatusCode() int { return e.code }

// ErrStatus constructs a statusError.
func ErrStatus(code int, detail string) error { return statusError{code: code, detail: detail} }

// IsStatus reports whether err carries an upstream HTTP status.
func IsStatus(err error) bool {
	_, ok := err.(statusError)
	return ok
}

// unreachableError signals a transport-level failure talking to the upstream
// (connection refused, DNS, timeout before headers) for 502 mapping.
type unreachableError struct {
	op  string
	err error
}

func (e unreachableError) Error() string {
	return fmt.Sprintf("upstream unreachable during %s: %v", e.op, e.err)
}

func (e unreachableError) Unwrap() error { return e.err }

// StatusCode maps transport failures to 502 Bad Gateway.
func (e unreachableError) StatusCode() int { return 502 }

// ErrUnreachable constructs an unreachableError.
func ErrUnreachable(op string, err error) error { return unreachableError{op: op, err: err} }

// IsUnreachable reports whether err indicates the upstream could not be reached.
func IsUnreachable(err error) bool {
	_, ok := err.(unreachableError)
	return ok
}
