package sqs

import (
	"errors"
	"strings"

	"github.com/simplequeue/sqs/wire"
)

// ErrorKind classifies every error returned by this package.
type ErrorKind int

const (
	// KindConnection is an I/O failure or timeout. The connection moved to
	// NotConnected and must be re-established by the caller.
	KindConnection ErrorKind = iota + 1
	// KindUnexpectedResponse means the broker reply violated the protocol
	// step. The operation failed, the connection state is unchanged.
	KindUnexpectedResponse
	// KindBadState means the operation was invoked outside of its required
	// connection state.
	KindBadState
	// KindEncoding is a body codec failure.
	KindEncoding
	// KindInvalidMessage is a message construction or validation failure.
	KindInvalidMessage
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindUnexpectedResponse:
		return "unexpected response"
	case KindBadState:
		return "bad state"
	case KindEncoding:
		return "encoding error"
	case KindInvalidMessage:
		return "invalid message"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is: errors.Is(err, sqs.ErrBadState).
var (
	ErrConnection         = &Error{Kind: KindConnection}
	ErrUnexpectedResponse = &Error{Kind: KindUnexpectedResponse}
	ErrBadState           = &Error{Kind: KindBadState}
	ErrEncoding           = &Error{Kind: KindEncoding}
	ErrInvalidMessage     = &Error{Kind: KindInvalidMessage}
)

// Error is the single error type returned by producers, consumers and the
// message builder.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed, e.g. "connect" or "send".
	Op string
	// Expected and Actual are set for KindUnexpectedResponse.
	Expected string
	Actual   string
	// Msg is a human readable detail.
	Msg string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("sqs: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Kind == KindUnexpectedResponse {
		b.WriteString(": expected \"")
		b.WriteString(e.Expected)
		b.WriteString("\", got \"")
		b.WriteString(e.Actual)
		b.WriteString("\"")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil && e.Kind != KindUnexpectedResponse {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, so the package sentinels match any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func connectionError(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

func badState(op, msg string) *Error {
	return &Error{Kind: KindBadState, Op: op, Msg: msg}
}

func encodingError(op string, err error) *Error {
	return &Error{Kind: KindEncoding, Op: op, Err: err}
}

func invalidMessage(msg string) *Error {
	return &Error{Kind: KindInvalidMessage, Op: "build", Msg: msg}
}

// wrapWireError converts a wire level failure into an *Error.
func wrapWireError(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var unexpected *wire.UnexpectedResponseError
	if errors.As(err, &unexpected) {
		return &Error{
			Kind:     KindUnexpectedResponse,
			Op:       op,
			Expected: unexpected.Expected,
			Actual:   unexpected.Actual,
			Err:      unexpected,
		}
	}

	return connectionError(op, err)
}
