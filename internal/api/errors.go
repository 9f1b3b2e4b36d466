// errors.go - Structured error handling for API responses
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/session"
	"github.com/joinhub/console/internal/tracker"
	"github.com/joinhub/console/internal/wizard"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int      `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewUnsupportedFormatError creates a 422 error listing the rejected files
func NewUnsupportedFormatError(rejected *intake.RejectedError) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "UNSUPPORTED_FORMAT",
		Message: "unsupported file format",
		Details: rejected.Error(),
		Files:   rejected.Names,
	}
}

// NewLargeFilesError creates a 409 error asking the caller to confirm large files
func NewLargeFilesError(large *convert.LargeFilesError) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFIRM_LARGE_FILES",
		Message: large.Error(),
		Files:   large.Names,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewUpstreamError creates an error for a failed join backend call. A 404
// from the backend stays a 404; everything else becomes 502.
func NewUpstreamError(cause error) *APIError {
	var backendErr *joinapi.Error
	if errors.As(cause, &backendErr) {
		if backendErr.StatusCode == http.StatusNotFound {
			return &APIError{
				Status:  http.StatusNotFound,
				Code:    "NOT_FOUND",
				Message: backendErr.Error(),
				Details: backendErr.Detail,
			}
		}
		return &APIError{
			Status:  http.StatusBadGateway,
			Code:    "BACKEND_ERROR",
			Message: backendErr.Error(),
			Details: backendErr.Detail,
		}
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return NewGatewayTimeoutError(cause)
	}
	return &APIError{
		Status:  http.StatusBadGateway,
		Code:    "BACKEND_UNAVAILABLE",
		Message: "join backend is unreachable",
		Details: cause.Error(),
	}
}

// NewGatewayTimeoutError creates a 504 error
func NewGatewayTimeoutError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusGatewayTimeout,
		Code:    "TIMEOUT",
		Message: "join backend did not answer in time",
		Details: cause.Error(),
	}
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// translateError maps package errors to API errors. ok is false when err is
// not one the console knows about.
func translateError(err error) (apiErr *APIError, ok bool) {
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	var rejected *intake.RejectedError
	if errors.As(err, &rejected) {
		return NewUnsupportedFormatError(rejected), true
	}
	var large *convert.LargeFilesError
	if errors.As(err, &large) {
		return NewLargeFilesError(large), true
	}
	var backendErr *joinapi.Error
	if errors.As(err, &backendErr) {
		return NewUpstreamError(err), true
	}

	switch {
	case errors.Is(err, wizard.ErrBusy), errors.Is(err, wizard.ErrReset):
		return NewConflictError(err.Error()), true
	case errors.Is(err, wizard.ErrNotEnoughFiles),
		errors.Is(err, wizard.ErrNotAtFinalStep),
		errors.Is(err, wizard.ErrProjectNameRequired),
		errors.Is(err, wizard.ErrInvalidProcessing),
		errors.Is(err, convert.ErrNoFiles),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, export.ErrNothingToExport):
		return NewBadRequestError(err.Error(), nil), true
	case errors.Is(err, session.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}, true
	case errors.Is(err, session.ErrTooMany):
		return NewServiceUnavailableError(err.Error()), true
	case errors.Is(err, convert.ErrJobNotFound), errors.Is(err, tracker.ErrNotLoaded):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}, true
	case errors.Is(err, context.DeadlineExceeded):
		return NewGatewayTimeoutError(err), true
	}
	return nil, false
}

// backendError is translateError for handlers that called the join backend:
// anything unknown is treated as a transport failure.
func backendError(err error) *APIError {
	if apiErr, ok := translateError(err); ok {
		return apiErr
	}
	return NewUpstreamError(err)
}

// NewErrorHandler returns the echo error handler.
// Usage: e.HTTPErrorHandler = api.NewErrorHandler(logger, true)
func NewErrorHandler(logger *zap.Logger, exposeDetails bool) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			var ok bool
			if apiErr, ok = translateError(err); !ok {
				apiErr = &APIError{
					Status:  http.StatusInternalServerError,
					Code:    "UNKNOWN_ERROR",
					Message: "An unexpected error occurred",
				}
				if exposeDetails {
					apiErr.Details = err.Error()
				}
			}
		}

		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", apiErr.Status),
				zap.Error(err))
		}
		if !exposeDetails && apiErr.Status >= http.StatusInternalServerError && apiErr.Code == "INTERNAL_ERROR" {
			apiErr = &APIError{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}
