package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, or "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"

	// File intake
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeEmptyFile       = "EMPTY_FILE"
	CodeUnreadableFile  = "UNREADABLE_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeNoFile          = "NO_FILE"

	// Model calls
	CodeModelOverloaded    = "MODEL_OVERLOADED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAnalysisInProgress = "ANALYSIS_IN_PROGRESS"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Cause:   cause,
	}
}

// ModelOverloaded marks a transient provider failure that is safe to retry.
// The message keeps the provider's own wording so it stays recognisable in logs.
func ModelOverloaded(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeModelOverloaded,
		Message: fmt.Sprintf("%s: 503 Service Unavailable", service),
		Cause:   cause,
	}
}

// InvalidCredentials marks a provider rejection of the configured API key.
func InvalidCredentials(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: fmt.Sprintf("%s: API key not valid", service),
		Cause:   cause,
	}
}
