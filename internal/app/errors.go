package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"penwise/internal/analysis"
	"penwise/internal/assist"
	"penwise/internal/document"
	"penwise/internal/editor"
	"penwise/internal/export"
	"penwise/internal/tracker"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound, "SUGGESTION_NOT_FOUND", "Suggestion not found", nil
	case errors.Is(err, editor.ErrNoReplacement):
		return http.StatusUnprocessableEntity, "NO_REPLACEMENT", "Suggestion has no replacement; supply one", nil
	case errors.Is(err, tracker.ErrInvalidRange), errors.Is(err, document.ErrOutOfRange):
		return http.StatusUnprocessableEntity, "INVALID_RANGE", err.Error(), nil
	case errors.Is(err, document.ErrUnsupportedRange):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_RANGE", err.Error(), nil
	case errors.Is(err, document.ErrInvalidDocument):
		return http.StatusUnprocessableEntity, "INVALID_DOCUMENT", err.Error(), nil
	case errors.Is(err, analysis.ErrStale):
		return http.StatusConflict, "ANALYSIS_SUPERSEDED", "Document changed while analysis ran", nil
	case errors.Is(err, analysis.ErrNoProvider):
		return http.StatusServiceUnavailable, "ANALYSIS_UNAVAILABLE", "No analysis provider is reachable", nil
	case errors.Is(err, editor.ErrSessionClosed), errors.Is(err, analysis.ErrClosed):
		return http.StatusConflict, "SESSION_CLOSED", "Editing session was closed", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be html or pdf", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, assist.ErrEmptyQuery):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "query is required", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
