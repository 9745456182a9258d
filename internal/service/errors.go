package service

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindUpstream      ErrorKind = "upstream"
	// KindTimeout is the upstream failure raised when the model deadline passes.
	KindTimeout ErrorKind = "timeout"
)

// Error is a failure the orchestrator turns into a partial envelope. Message is
// what the client sees; Cause is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Outcome is the terminal state recorded in logs and metrics.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeRejected      Outcome = "rejected"
	OutcomeConfigError   Outcome = "config_error"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeTimeout       Outcome = "upstream_timeout"
	OutcomeEmptyResult   Outcome = "empty_result"
	OutcomeIngressError  Outcome = "ingress_error"
	OutcomePanic         Outcome = "panic"
)

func outcomeOf(err error) Outcome {
	var e *Error
	if !errors.As(err, &e) {
		return OutcomeUpstreamError
	}
	switch e.Kind {
	case KindValidation:
		return OutcomeRejected
	case KindConfiguration:
		return OutcomeConfigError
	case KindTimeout:
		return OutcomeTimeout
	default:
		if errors.Is(e.Cause, errEmptyResult) {
			return OutcomeEmptyResult
		}
		return OutcomeUpstreamError
	}
}

var errEmptyResult = errors.New(msgEmptyResult)

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func configurationError(cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: msgUnavailable, Cause: cause}
}

func timeoutError(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: msgTimeout, Cause: cause}
}

// upstreamError surfaces the upstream message to the client as is.
func upstreamError(cause error) *Error {
	message := msgUpstreamFailed
	if cause != nil && cause.Error() != "" {
		message = cause.Error()
	}
	return &Error{Kind: KindUpstream, Message: message, Cause: cause}
}
