package errors

import (
	"errors"
	"fmt"
)

// Error types for different categories of errors
const (
	ErrorTypeValidation        = "validation"
	ErrorTypeNotFound          = "not_found"
	ErrorTypeInsufficientStock = "insufficient_stock"
	ErrorTypeTransfer          = "transfer"
	ErrorTypePersistence       = "persistence"
	ErrorTypeInternal          = "internal"
)

// AppError represents an application error with type and context
type AppError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Err     error  `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}

	if appErr, ok := target.(*AppError); ok {
		return e.Type == appErr.Type
	}

	return errors.Is(e.Err, target)
}

// NewValidation creates a new validation error
func NewValidation(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFound creates a new not found error
func NewNotFound(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewInsufficientStock creates an insufficient stock error. Always
// recoverable by the caller; never retried automatically.
func NewInsufficientStock(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInsufficientStock,
		Message: message,
	}
}

// NewTransfer creates a transfer error (partial failure, fully rolled back)
func NewTransfer(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeTransfer,
		Message: message,
	}
}

// NewPersistence creates a persistence error
func NewPersistence(message string) *AppError {
	return &AppError{
		Type:    ErrorTypePersistence,
		Message: message,
	}
}

// NewInternal creates a new internal error
func NewInternal(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with a message
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:    appErr.Type,
			Message: message,
			Err:     err,
		}
	}

	// Default to persistence error for unknown errors from the storage layer
	return &AppError{
		Type:    ErrorTypePersistence,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// IsValidation checks if error is a validation error
func IsValidation(err error) bool {
	return hasErrorType(err, ErrorTypeValidation)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return hasErrorType(err, ErrorTypeNotFound)
}

// IsInsufficientStock checks if error is an insufficient stock error
func IsInsufficientStock(err error) bool {
	return hasErrorType(err, ErrorTypeInsufficientStock)
}

// IsTransfer checks if error is a transfer error
func IsTransfer(err error) bool {
	return hasErrorType(err, ErrorTypeTransfer)
}

// IsPersistence checks if error is a persistence error
func IsPersistence(err error) bool {
	return hasErrorType(err, ErrorTypePersistence)
}

// IsInternal checks if error is an internal error
func IsInternal(err error) bool {
	return hasErrorType(err, ErrorTypeInternal)
}

// hasErrorType walks the error chain looking for an AppError of the given type
func hasErrorType(err error, errorType string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == errorType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
