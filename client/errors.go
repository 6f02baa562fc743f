package client

import (
	"errors"
	"net"
	"syscall"
)

// classifyConnectionError wraps a transport-level err (a failure to get a
// response at all, as opposed to a non-OK status) into a ConnectionError,
// distinguishing "refused" and "timed out" per spec §7's "maps connection-
// level failures (refused, timed out, generic) to distinct client-side
// exceptions."
func classifyConnectionError(op string, err error) *ConnectionError {
	ce := &ConnectionError{Op: op, Err: err}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		ce.Timeout = true
		return ce
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		ce.Refused = true
		return ce
	}
	return ce
}
