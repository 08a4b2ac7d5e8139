package ui

import (
	"errors"
	"net/http"

	apperrors "ceaiinsights/internal/errors"
)

// statusFor maps an application error onto an HTTP status
func statusFor(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.CodeInvalidFileType, apperrors.CodeEmptyFile, apperrors.CodeUnreadableFile,
		apperrors.CodeNoFile, apperrors.CodeValidationError:
		return http.StatusBadRequest
	case apperrors.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.CodeAnalysisInProgress:
		return http.StatusConflict
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err: the AppError message when there is one
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
