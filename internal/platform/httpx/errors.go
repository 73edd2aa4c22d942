// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/gymdesk/gymdesk/internal/shared"
)

// StatusFor maps a domain error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, shared.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	RespondErrorData(w, err, nil)
}

// RespondErrorData is RespondError with structured context attached to the problem.
func RespondErrorData(w http.ResponseWriter, err error, data any) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, "Internal Error", "")
		return
	}
	JSON(w, status, ProblemDetail{
		Title:  titleFor(status, err),
		Status: status,
		Detail: err.Error(),
		Data:   data,
	})
}

// RespondValidation reports a decode or validation failure, attaching field
// errors when there are any.
func RespondValidation(w http.ResponseWriter, err error, fields map[string]string) {
	if len(fields) == 0 {
		RespondError(w, err)
		return
	}
	RespondErrorData(w, err, fields)
}

func titleFor(status int, err error) string {
	if errors.Is(err, shared.ErrInvalidState) {
		return "Invalid State"
	}
	return http.StatusText(status)
}
