package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 error.
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 error for a missing or invalid field.
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewInternalError creates a 500 error.
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 error.
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{Status: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE", Message: message}
}

// ErrorHandler renders errors returned by handlers as APIError JSON.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{Status: e.Code, Code: "HTTP_ERROR", Message: fmt.Sprintf("%v", e.Message)}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "an unexpected error occurred",
		}
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
