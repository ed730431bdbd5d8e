package dispatch

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stackmesh/entitybus/internal/domain"
)

// Envelope is the uniform response wrapper returned for every command,
// success or failure. It is a transport artifact, not part of the durable
// data model.
type Envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Path       string `json:"path"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

// successEnvelope wraps a command result.
func successEnvelope(pattern string, data any) Envelope {
	return Envelope{
		Success:    true,
		Data:       data,
		Message:    "success",
		Path:       patternPath(pattern),
		StatusCode: http.StatusOK,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// failureEnvelope wraps a command error. Data is always null on failure;
// the message comes from the error (UnexpectedError renders without its
// cause, so storage-layer detail never leaks here).
func failureEnvelope(pattern string, err error) Envelope {
	return Envelope{
		Success:    false,
		Data:       nil,
		Message:    err.Error(),
		Path:       patternPath(pattern),
		StatusCode: statusFor(err),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// statusFor maps the domain error taxonomy to a status code. The mapping
// is total: anything outside the taxonomy is treated as unexpected.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// patternPath renders a command pattern as the originating resource path,
// e.g. "user.create" -> "/user/create".
func patternPath(pattern string) string {
	return "/" + strings.ReplaceAll(pattern, ".", "/")
}
