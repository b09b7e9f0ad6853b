package response

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/alerting"
	"github.com/good-yellow-bee/vitalguard/internal/ingest"
)

// Error is the body of every non-2xx response. Status is the HTTP status
// and is not serialised.
type Error struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []ingest.FieldError `json:"details,omitempty"`
	Status  int                 `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeStateConflict    = "STATE_CONFLICT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

var (
	ErrInvalidToken   = newError(http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid or expired token")
	ErrInternalServer = newError(http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
	ErrRateLimited    = newError(http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests")
)

func newError(status int, code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func NewBadRequest(message string) *Error {
	return newError(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func NewNotFound(message string) *Error {
	return newError(http.StatusNotFound, ErrCodeNotFound, message)
}

func NewConflict(message string) *Error {
	return newError(http.StatusConflict, ErrCodeConflict, message)
}

// NewValidationError is a 400 listing the offending fields.
func NewValidationError(message string, details ...ingest.FieldError) *Error {
	e := newError(http.StatusBadRequest, ErrCodeValidationFailed, message)
	e.Details = details
	return e
}

// FromError maps a domain error to an API error. Anything unrecognised is a
// generic 500; internal detail stays in the server log.
func FromError(err error) *Error {
	var (
		apiErr     *Error
		validation *ingest.ValidationError
		notFound   *alerting.NotFoundError
		conflict   *alerting.StateConflictError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validation):
		return NewValidationError("Reading failed validation", validation.Fields...)
	case errors.As(err, &notFound):
		return NewNotFound(notFound.Error())
	case errors.As(err, &conflict):
		return newError(http.StatusConflict, ErrCodeStateConflict, conflict.Error())
	default:
		return ErrInternalServer
	}
}

// HandleError writes err as an API error, logging 5xx causes under op.
func HandleError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	apiErr := FromError(err)
	if apiErr.Status >= http.StatusInternalServerError && logger != nil {
		logger.Error(op+" failed", zap.Error(err))
	}
	JSONError(w, apiErr)
}
