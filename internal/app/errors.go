package app

import (
	"errors"
	"fmt"
	"net/http"

	"storyscape/api/internal/export"
	"storyscape/api/internal/planning"
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

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

var (
	errSessionNotFound = domainError(http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
	errStoryNotFound   = domainError(http.StatusNotFound, "NOT_FOUND", "Story not found", nil)
)

// commandError turns a planning command failure into the error a caller
// sees. Anything unrecognized passes through and surfaces as a server error.
func commandError(err error) error {
	switch {
	case errors.Is(err, planning.ErrStoryNotFound):
		return errStoryNotFound
	case errors.Is(err, planning.ErrTitleRequired):
		return validationError("title is required", nil)
	case errors.Is(err, planning.ErrAnchorDelete):
		return domainError(http.StatusConflict, "ANCHOR_CONFLICT", "Anchor story cannot be deleted while other stories exist", nil)
	case errors.Is(err, planning.ErrAnchorPinned):
		return domainError(http.StatusConflict, "ANCHOR_CONFLICT", "Anchor story stays at the origin; choose another anchor first", nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return validationError("format must be html or pdf", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	}
	return err
}
