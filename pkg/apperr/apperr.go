// Package apperr is the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnknown        Kind = "unknown"
	KindValidation     Kind = "validation"
	KindConfiguration  Kind = "configuration"
	KindProvider       Kind = "provider"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindStore          Kind = "store"
	KindTimeout        Kind = "timeout"
	KindNotImplemented Kind = "not_implemented"
	KindUnauthorized   Kind = "unauthorized"
	KindRateLimited    Kind = "rate_limited"
)

// Error carries a Kind plus, for provider failures, the upstream status and raw body.
type Error struct {
	Kind           Kind
	Op             string
	Message        string
	ProviderStatus int
	ProviderBody   string
	Err            error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error     { return newf(KindValidation, format, args...) }
func Configuration(format string, args ...any) error  { return newf(KindConfiguration, format, args...) }
func NotFound(format string, args ...any) error       { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) error       { return newf(KindConflict, format, args...) }
func NotImplemented(format string, args ...any) error { return newf(KindNotImplemented, format, args...) }
func Unauthorized(format string, args ...any) error   { return newf(KindUnauthorized, format, args...) }
func RateLimited(format string, args ...any) error    { return newf(KindRateLimited, format, args...) }

// Store wraps a persistence failure.
func Store(op string, err error) error {
	return &Error{Kind: KindStore, Op: op, Message: "store failure", Err: err}
}

// Provider wraps a non-2xx or malformed provider response. A 401 or 403 means our
// credentials were rejected and is reported as Configuration.
func Provider(op string, status int, body string, err error) error {
	kind, msg := KindProvider, "provider request failed"
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind, msg = KindConfiguration, "provider rejected credentials"
	}
	return &Error{Kind: kind, Op: op, Message: msg, ProviderStatus: status, ProviderBody: body, Err: err}
}

// FromProviderCall classifies a provider transport error, turning deadline hits and
// cancellations into Timeout.
func FromProviderCall(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "provider timed out, retry later", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Op: op, Message: "provider call canceled, retry later", Err: err}
	}
	return &Error{Kind: KindProvider, Op: op, Message: "provider unreachable", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// IsRetryable reports whether the caller may safely retry the same request.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindStore:
		return true
	case KindProvider:
		var ae *Error
		errors.As(err, &ae)
		return ae.ProviderStatus == 0 || ae.ProviderStatus >= 500
	}
	return false
}

// HTTPStatus maps err to the status code returned by the API.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindValidation, KindConflict, KindNotImplemented:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindProvider:
		if ae.ProviderStatus >= 400 && ae.ProviderStatus <= 599 {
			return ae.ProviderStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
