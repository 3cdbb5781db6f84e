// Package apierr maps domain errors onto admin API error responses.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/chessgame-go/internal/model"
)

// APIError is the body of every failed admin request
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodePlayerNotFound   = "PLAYER_NOT_FOUND"
	CodeGameNotFound     = "GAME_NOT_FOUND"
	CodeRouteNotFound    = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// statusError is an APIError with the status it is sent with
type statusError struct {
	status int
	body   APIError
}

func (e *statusError) Error() string {
	return e.body.Message
}

var (
	errPlayerNotFound   = &statusError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	errGameNotFound     = &statusError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	errRouteNotFound    = &statusError{http.StatusNotFound, APIError{CodeRouteNotFound, "No such endpoint"}}
	errMethodNotAllowed = &statusError{http.StatusMethodNotAllowed, APIError{CodeMethodNotAllowed, "Method not allowed"}}
	errUnavailable      = &statusError{http.StatusServiceUnavailable, APIError{CodeUnavailable, "Request cancelled before completion"}}
	errUnauthorized     = &statusError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
	errInternal         = &statusError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
)

// WriteError writes the response for err. Errors without a mapping become
// a 500 that does not leak their text.
func WriteError(w http.ResponseWriter, err error) {
	se := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: se.body})
}

func statusFor(err error) *statusError {
	var se *statusError
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return errPlayerNotFound
	case errors.Is(err, model.ErrGameNotFound):
		return errGameNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errUnavailable
	default:
		return errInternal
	}
}

// NewInvalidRequestError reports a malformed path or query parameter
func NewInvalidRequestError(message string) error {
	return &statusError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError reports a missing or wrong admin token
func NewUnauthorizedError() error {
	return errUnauthorized
}

// WritePanic answers a request whose handler panicked
func WritePanic(w http.ResponseWriter, _ *http.Request, _ any) {
	WriteError(w, errInternal)
}

// RouteNotFound answers requests no route matches
func RouteNotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, errRouteNotFound)
}

// MethodNotAllowed answers requests for a known path with the wrong method
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, errMethodNotAllowed)
}
