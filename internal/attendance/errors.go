package attendance

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an expected, user-facing outcome. Anything outside this
// taxonomy is an infrastructure failure and surfaces as a 500.
type Code string

const (
	CodeNotAuthorized       Code = "NOT_AUTHORIZED"
	CodeNoClassToday        Code = "NO_CLASS_TODAY"
	CodeOutsideClassWindow  Code = "OUTSIDE_CLASS_WINDOW"
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeSessionExpired      Code = "SESSION_EXPIRED"
	CodeNotEnrolled         Code = "NOT_ENROLLED"
	CodeDeviceMismatch      Code = "DEVICE_MISMATCH"
	CodeOutOfRange          Code = "OUT_OF_RANGE"
	CodeAlreadyMarked       Code = "ALREADY_MARKED"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
)

// APIError is the structured outcome returned for every failed check.
type APIError struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func errNotAuthorized(msg string) *APIError {
	return &APIError{Code: CodeNotAuthorized, Message: msg}
}

func errNoClassToday(msg string) *APIError {
	return &APIError{Code: CodeNoClassToday, Message: msg}
}

func errOutsideWindow(msg string) *APIError {
	return &APIError{Code: CodeOutsideClassWindow, Message: msg}
}

func errSessionNotFound() *APIError {
	return &APIError{Code: CodeSessionNotFound, Message: "session not found"}
}

func errSessionExpired() *APIError {
	return &APIError{Code: CodeSessionExpired, Message: "session is no longer accepting attendance"}
}

func errNotEnrolled() *APIError {
	return &APIError{Code: CodeNotEnrolled, Message: "you are not enrolled in this class"}
}

func errDeviceMismatch() *APIError {
	return &APIError{Code: CodeDeviceMismatch, Message: "attendance must be marked from your registered device"}
}

func errOutOfRange(distance, radius float64) *APIError {
	return &APIError{
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("you are %.0fm from the class location, allowed radius is %.0fm", distance, radius),
		Details: map[string]any{"distance_m": distance, "max_distance_m": radius},
	}
}

func errAlreadyMarked() *APIError {
	return &APIError{Code: CodeAlreadyMarked, Message: "attendance already marked for this session"}
}

// ErrConcurrencyConflict is returned when a storage-layer uniqueness guard
// rejects a write that raced past the pre-checks.
func ErrConcurrencyConflict(msg string) *APIError {
	return &APIError{Code: CodeConcurrencyConflict, Message: msg}
}

// CodeOf extracts the taxonomy code from an error chain.
func CodeOf(err error) (Code, bool) {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code, true
	}
	return "", false
}

// HTTPStatus maps an error to the status the HTTP layer should answer with.
func HTTPStatus(err error) int {
	var api *APIError
	if !errors.As(err, &api) {
		return http.StatusInternalServerError
	}
	switch api.Code {
	case CodeNotAuthorized, CodeNotEnrolled, CodeDeviceMismatch:
		return http.StatusForbidden
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeSessionExpired:
		return http.StatusGone
	case CodeNoClassToday, CodeOutsideClassWindow, CodeOutOfRange:
		return http.StatusUnprocessableEntity
	case CodeAlreadyMarked, CodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
