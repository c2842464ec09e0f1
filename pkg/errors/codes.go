package errors

import "net/http"

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodePayment       Code = "PAYMENT_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
)

type exposure uint8

const (
	// the caller sees Error.Message instead of the public default
	showMessage exposure = 1 << iota
	showDetails
	retryable
)

type codeInfo struct {
	status int
	public string
	flags  exposure
}

var codes = map[Code]codeInfo{
	CodeValidation:    {http.StatusBadRequest, "validation failed", showMessage | showDetails},
	CodeUnauthorized:  {http.StatusUnauthorized, "authentication required", showMessage},
	CodeForbidden:     {http.StatusForbidden, "access denied", showMessage},
	CodeNotFound:      {http.StatusNotFound, "resource not found", showMessage},
	CodeConflict:      {http.StatusConflict, "conflict detected", showMessage},
	CodeStateConflict: {http.StatusUnprocessableEntity, "state transition disallowed", showMessage | showDetails},
	CodeIdempotency:   {http.StatusConflict, "idempotency key reused", showMessage | showDetails},
	CodePayment:       {http.StatusPaymentRequired, "payment failed", showMessage | showDetails},
	CodeInternal:      {http.StatusInternalServerError, "internal server error", retryable},
	CodeDependency:    {http.StatusServiceUnavailable, "dependency unavailable", showDetails | retryable},
	CodeConfiguration: {http.StatusInternalServerError, "service misconfigured", 0},
}

func (c Code) info() codeInfo {
	if info, ok := codes[c]; ok {
		return info
	}
	return codes[CodeInternal]
}

// Status is the HTTP status the code maps to. Unknown codes are 500.
func (c Code) Status() int { return c.info().status }

// PublicMessage is shown when the error's own message stays internal.
func (c Code) PublicMessage() string { return c.info().public }

func (c Code) ShowsMessage() bool { return c.info().flags&showMessage != 0 }

func (c Code) ShowsDetails() bool { return c.info().flags&showDetails != 0 }

func (c Code) Retryable() bool { return c.info().flags&retryable != 0 }
