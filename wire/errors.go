package wire

import (
	"errors"
	"net"
)

// Error types for wire protocol operations. They tell callers whether the
// socket is still usable.

// ErrResponseTooLarge is returned when a reply fills the whole read buffer.
// The reply may have been cut, so the stream is out of sync.
var ErrResponseTooLarge = errors.New("wire: response exceeds maximum size")

// UnexpectedResponseError is returned when the broker reply does not match
// the protocol step.
//
// Connection handling: the socket is left open, the current operation failed.
type UnexpectedResponseError struct {
	Expected string
	Actual   string
	// Exact is true when the reply had to match Expected exactly, false when
	// it only had to contain it.
	Exact bool
}

func (e *UnexpectedResponseError) Error() string {
	if e.Exact {
		return "wire: unexpected response: expected " + quote(e.Expected) + ", got " + quote(e.Actual)
	}
	return "wire: unexpected response: expected to contain " + quote(e.Expected) + ", got " + quote(e.Actual)
}

// Unwrap exposes a BrokerError when the broker explicitly rejected the step.
func (e *UnexpectedResponseError) Unwrap() error {
	if be, ok := ParseBrokerError(e.Actual); ok {
		return be
	}
	return nil
}

// ShouldCloseConnection returns false - the socket itself is not broken
func (e *UnexpectedResponseError) ShouldCloseConnection() bool {
	return false
}

// BrokerError is an "ERROR: <reason>" reply from the broker.
type BrokerError struct {
	Reason string
}

func (e *BrokerError) Error() string {
	return "broker error: " + e.Reason
}

// ConnectionError wraps an I/O failure on the socket.
//
// Connection handling: the socket is broken and must be closed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Op == "" {
		return "wire: connection error: " + e.Err.Error()
	}
	return "wire: connection error during " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the socket is unusable
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// Timeout reports whether the underlying failure was a deadline.
func (e *ConnectionError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ErrorWithConnectionState is implemented by errors that know whether the
// socket survived.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether the socket must be closed after err.
// Unknown errors are treated conservatively.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var stateErr ErrorWithConnectionState
	if errors.As(err, &stateErr) {
		return stateErr.ShouldCloseConnection()
	}

	// ErrResponseTooLarge, io.EOF and unknown errors
	return true
}

func quote(s string) string {
	return "\"" + s + "\""
}
