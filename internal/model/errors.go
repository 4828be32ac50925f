package model

import "errors"

var (
	ErrAuthentication     = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
	ErrForbidden          = errors.New("operation not permitted")
	ErrNotFound           = errors.New("resource not found")
	ErrSelfShare          = errors.New("cannot share a document with its owner")
	ErrTransport          = errors.New("service temporarily unavailable")
)

// ValidationError reports a rejected request field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
