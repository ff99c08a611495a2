package jushuitan

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the SDK.
type Kind int

const (
	// KindConfiguration is a missing credential or an absent access token.
	// Raised before any network activity.
	KindConfiguration Kind = iota + 1
	// KindTransport is a failed HTTP round trip (DNS, connect, TLS, timeout)
	// or an HTTP status >= 400.
	KindTransport
	// KindProtocol is a response body that is not a JSON object.
	KindProtocol
	// KindAPI is a well-formed envelope carrying a non-zero code.
	KindAPI
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the SDK.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Code is the platform error code for KindAPI, the HTTP status for
	// KindTransport status failures, and 0 otherwise.
	Code int
	// Message describes the error.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("jushuitan: %s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("jushuitan: %s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newConfigurationError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

func newTransportError(code int, msg string, err error) *Error {
	return &Error{Kind: KindTransport, Code: code, Message: msg, Err: err}
}

func newProtocolError(msg string, err error) *Error {
	return &Error{Kind: KindProtocol, Message: msg, Err: err}
}

func newAPIError(code int, msg string) *Error {
	return &Error{Kind: KindAPI, Code: code, Message: msg}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return kindOf(err) == KindConfiguration
}

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool {
	return kindOf(err) == KindTransport
}

// IsProtocol reports whether err is a protocol error.
func IsProtocol(err error) bool {
	return kindOf(err) == KindProtocol
}

// IsAPI reports whether err is an error envelope returned by the platform.
func IsAPI(err error) bool {
	return kindOf(err) == KindAPI
}

// CodeOf returns the code carried by err, or 0 if err is not an *Error.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
