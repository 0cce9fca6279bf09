// Package apierr is the JSON error envelope shared by the goals API and its
// client.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"goaltracker/internal/goals"
)

// Standard error codes
const (
	CodeInternal     = "INTERNAL_SERVER_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Error *Error `json:"error"`
}

func Write(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: &Error{Code: code, Message: message}})
}

// WriteErr maps a domain error onto status and code.
func WriteErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goals.ErrNotFound):
		Write(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, goals.ErrValidation):
		Write(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, goals.ErrUnauthorized):
		Write(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	default:
		Write(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// Sentinel maps a response status to the domain error the client reports.
func Sentinel(status int) error {
	switch {
	case status == http.StatusNotFound:
		return goals.ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		return goals.ErrValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return goals.ErrUnauthorized
	default:
		return goals.ErrNetwork
	}
}
