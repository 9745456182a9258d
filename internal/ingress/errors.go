package ingress

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a request body could not be turned into an AnalysisRequest.
type Kind string

const (
	KindEmptyBody         Kind = "empty_body"
	KindMalformedEncoding Kind = "malformed_encoding"
	KindTooLarge          Kind = "too_large"
)

// Error is returned by the parser. It is always recoverable: callers turn it
// into a partial envelope.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ingress %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("ingress %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Message is the client-facing text for the partial envelope.
func (e *Error) Message() string {
	switch e.Kind {
	case KindEmptyBody:
		return "no image received"
	case KindTooLarge:
		return "image is too large"
	default:
		return "image transfer failed"
	}
}

func emptyBody(cause error) *Error {
	return &Error{Kind: KindEmptyBody, Cause: cause}
}

// malformed reports a demultiplexing failure, or TooLarge when the body limit
// set by http.MaxBytesReader was hit underneath.
func malformed(cause error) *Error {
	var tooLarge *http.MaxBytesError
	if errors.As(cause, &tooLarge) {
		return &Error{Kind: KindTooLarge, Cause: cause}
	}
	return &Error{Kind: KindMalformedEncoding, Cause: cause}
}

// AsError unwraps err into *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
