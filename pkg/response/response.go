package response

import (
	"errors"

	"github.com/fatflowers/subsync/pkg/apperr"
)

type APIResponseCode int

const (
	APIResponseCodeOK             APIResponseCode = 0
	APIResponseCodeBadRequest     APIResponseCode = 40000
	APIResponseCodeConflict       APIResponseCode = 40001
	APIResponseCodeNotImplemented APIResponseCode = 40002
	APIResponseCodeUnauthorized   APIResponseCode = 40100
	APIResponseCodeNotFound       APIResponseCode = 40400
	APIResponseCodeRateLimited    APIResponseCode = 42900
	APIResponseCodeError          APIResponseCode = 50000
	APIResponseCodeConfiguration  APIResponseCode = 50001
	APIResponseCodeProvider       APIResponseCode = 50200
	APIResponseCodeTimeout        APIResponseCode = 50400
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:             "ok",
	APIResponseCodeBadRequest:     "request rejected",
	APIResponseCodeConflict:       "conflict",
	APIResponseCodeNotImplemented: "not implemented",
	APIResponseCodeUnauthorized:   "unauthorized",
	APIResponseCodeNotFound:       "not found",
	APIResponseCodeRateLimited:    "too many requests",
	APIResponseCodeError:          "unexpected error",
	APIResponseCodeConfiguration:  "service misconfigured",
	APIResponseCodeProvider:       "payment provider error",
	APIResponseCodeTimeout:        "payment provider timeout, retry later",
}

var kindToCode = map[apperr.Kind]APIResponseCode{
	apperr.KindValidation:     APIResponseCodeBadRequest,
	apperr.KindConflict:       APIResponseCodeConflict,
	apperr.KindNotImplemented: APIResponseCodeNotImplemented,
	apperr.KindUnauthorized:   APIResponseCodeUnauthorized,
	apperr.KindNotFound:       APIResponseCodeNotFound,
	apperr.KindRateLimited:    APIResponseCodeRateLimited,
	apperr.KindConfiguration:  APIResponseCodeConfiguration,
	apperr.KindProvider:       APIResponseCodeProvider,
	apperr.KindTimeout:        APIResponseCodeTimeout,
	apperr.KindStore:          APIResponseCodeError,
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT / FromError helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Error          string `json:"error"`
	Retryable      bool   `json:"retryable,omitempty"`
	ProviderStatus int    `json:"provider_status,omitempty"`
	ProviderBody   string `json:"provider_body,omitempty"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// FromError builds the HTTP status and envelope for err.
func FromError(err error) (int, *APIResponse[*ErrorData]) {
	code, ok := kindToCode[apperr.KindOf(err)]
	if !ok {
		code = APIResponseCodeError
	}
	data := &ErrorData{Error: err.Error(), Retryable: apperr.IsRetryable(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		data.ProviderStatus = ae.ProviderStatus
		data.ProviderBody = ae.ProviderBody
	}
	return apperr.HTTPStatus(err), ErrorT(code, data)
}
