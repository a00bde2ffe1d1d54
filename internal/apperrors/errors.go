package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrIdentityNotFound indicates that a currency code or ID did not resolve to a currency
// visible to the user. It wraps ErrNotFound so generic not-found handling still applies.
var ErrIdentityNotFound = fmt.Errorf("currency identity not resolved: %w", ErrNotFound)

// ErrDerivationStorage indicates that persisting a regenerated rate graph failed and the
// whole unit of work was rolled back.
var ErrDerivationStorage = errors.New("derived rate storage failure")

// ErrUpstream indicates that an external rate provider failed or returned unusable data.
var ErrUpstream = errors.New("upstream provider failure")

// AppError carries an HTTP-ish status code alongside a message and the underlying cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause so errors.Is/As can see through AppError.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError with the given status code.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError creates a 404 AppError wrapping ErrNotFound.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: ErrNotFound}
}

// NewValidationError creates a 400 AppError wrapping ErrValidation.
func NewValidationError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: ErrValidation}
}

// NewDuplicateError creates a 409 AppError wrapping ErrDuplicate.
func NewDuplicateError(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: message, Err: ErrDuplicate}
}
