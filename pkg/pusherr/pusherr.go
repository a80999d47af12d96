// Package pusherr defines the failure kinds reported by the push service.
package pusherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to retry.
type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindValidation    Kind = "validation_error"
	KindCredential    Kind = "credential_error"
	KindTransport     Kind = "transport_error"
	KindAuthExchange  Kind = "auth_exchange_error"
	KindDelivery      Kind = "delivery_error"
)

// Error is the structured error returned across the notification boundary.
type Error struct {
	Kind Kind
	Op   string
	// StatusCode is the upstream HTTP status, zero when no response was read.
	StatusCode int
	// Code is the provider error code (e.g. UNREGISTERED), if any.
	Code string
	// Body holds the raw upstream response for diagnostics.
	Body string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an error of the given kind from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func Configuration(op string, err error) *Error { return New(KindConfiguration, op, err) }
func Validation(op string, err error) *Error    { return New(KindValidation, op, err) }
func Credential(op string, err error) *Error    { return New(KindCredential, op, err) }
func Transport(op string, err error) *Error     { return New(KindTransport, op, err) }

// AuthExchange reports a rejected or empty token exchange.
func AuthExchange(op string, status int, body string) *Error {
	return &Error{Kind: KindAuthExchange, Op: op, StatusCode: status, Body: body}
}

// Delivery reports a message the push API refused.
func Delivery(op string, status int, code, body string) *Error {
	return &Error{Kind: KindDelivery, Op: op, StatusCode: status, Code: code, Body: body}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable is true only for transport failures; authorization and delivery
// rejections are not retried.
func Retryable(err error) bool {
	return Is(err, KindTransport)
}

// CodeOf returns the provider code of err, or "" if none.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HTTPStatus maps a kind to the status the inbound HTTP boundary answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindTransport, KindAuthExchange, KindDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
