package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"

	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeExternalAPI    = "EXTERNAL_API_ERROR"
	ErrCodeTimeout        = "TIMEOUT_ERROR"
	ErrCodeServiceUnavail = "SERVICE_UNAVAILABLE"
	ErrCodeIO             = "IO_ERROR"

	ErrCodeGenerationFailed   = "GENERATION_FAILED"
	ErrCodeVerificationFailed = "VERIFICATION_FAILED"
	ErrCodeParseFailed        = "PARSE_FAILED"
)

// AppError is an error the CLI and the report server can show as is: a
// stable code, a one-line message and, in Details, what the user can do
// about it.
type AppError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  string         `json:"details,omitempty"`
	Cause    error          `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// HTTPStatus is what the report server answers with.
	HTTPStatus int `json:"-"`

	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError with the same code, so the sentinels below work
// with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func (e *AppError) WithMetadata(key string, value any) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithRetry marks the error as worth retrying after the given delay.
func (e *AppError) WithRetry(after time.Duration) *AppError {
	e.Retryable = true
	e.RetryAfter = after
	return e
}

func NewError(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func ErrValidation(message string) *AppError {
	return NewError(ErrCodeValidation, message, http.StatusBadRequest)
}

func ErrValidationField(field, message string) *AppError {
	return ErrValidation(message).WithMetadata("field", field)
}

func ErrNotFound(resource, id string) *AppError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", resource, id), http.StatusNotFound).
		WithMetadata("resource", resource).
		WithMetadata("id", id)
}

// ErrFileExists is returned by generators that refuse to overwrite.
func ErrFileExists(path string) *AppError {
	return NewError(ErrCodeConflict, fmt.Sprintf("file already exists: %s", path), http.StatusConflict).
		WithMetadata("path", path)
}

func ErrInternal(message string) *AppError {
	if message == "" {
		message = "Internal error"
	}
	return NewError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func ErrExternalAPI(service string, err error) *AppError {
	return NewError(ErrCodeExternalAPI, fmt.Sprintf("External API error: %s", service), http.StatusBadGateway).
		WithCause(err).
		WithMetadata("service", service).
		WithRetry(5 * time.Second)
}

func ErrTimeout(operation string) *AppError {
	return NewError(ErrCodeTimeout, fmt.Sprintf("Operation timed out: %s", operation), http.StatusGatewayTimeout).
		WithMetadata("operation", operation).
		WithRetry(10 * time.Second)
}

func ErrServiceUnavailable(service string) *AppError {
	return NewError(ErrCodeServiceUnavail, fmt.Sprintf("Service unavailable: %s", service), http.StatusServiceUnavailable).
		WithMetadata("service", service).
		WithRetry(30 * time.Second)
}

// ErrIO reports a failed file operation, e.g. ErrIO("writing", path, err).
func ErrIO(op, path string, err error) *AppError {
	return NewError(ErrCodeIO, fmt.Sprintf("%s %s", op, path), http.StatusInternalServerError).
		WithCause(err).
		WithMetadata("path", path)
}

func ErrGenerationFailed(reason string, err error) *AppError {
	return NewError(ErrCodeGenerationFailed, fmt.Sprintf("Generation failed: %s", reason), http.StatusUnprocessableEntity).
		WithCause(err)
}

func ErrVerificationFailed(reason string, err error) *AppError {
	return NewError(ErrCodeVerificationFailed, fmt.Sprintf("Verification failed: %s", reason), http.StatusUnprocessableEntity).
		WithCause(err)
}

func ErrParseFailed(what string, err error) *AppError {
	return NewError(ErrCodeParseFailed, fmt.Sprintf("Could not parse %s", what), http.StatusUnprocessableEntity).
		WithCause(err)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus is the status the report server answers err with: the
// AppError's own, else 500.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether err is marked retryable
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

// Sentinels for errors.Is. Any AppError with the same code matches.
var (
	ErrNotFoundSentinel     = NewError(ErrCodeNotFound, "not found", http.StatusNotFound)
	ErrConflictSentinel     = NewError(ErrCodeConflict, "conflict", http.StatusConflict)
	ErrValidationSentinel   = NewError(ErrCodeValidation, "invalid input", http.StatusBadRequest)
	ErrParseFailedSentinel  = NewError(ErrCodeParseFailed, "parse failed", http.StatusUnprocessableEntity)
	ErrExternalAPISentinel  = NewError(ErrCodeExternalAPI, "external api error", http.StatusBadGateway)
	ErrUnavailableSentinel  = NewError(ErrCodeServiceUnavail, "service unavailable", http.StatusServiceUnavailable)
	ErrTimeoutSentinel      = NewError(ErrCodeTimeout, "timeout", http.StatusGatewayTimeout)
	ErrGenerationSentinel   = NewError(ErrCodeGenerationFailed, "generation failed", http.StatusUnprocessableEntity)
	ErrVerificationSentinel = NewError(ErrCodeVerificationFailed, "verification failed", http.StatusUnprocessableEntity)
)
