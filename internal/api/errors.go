package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dzpanel/dzpanel/internal/supervisor"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeSpawnFailed    = "spawn_failed"
	ErrCodeDirCreate      = "dir_create_failed"
	ErrCodeTermination    = "termination_failed"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeSupervisorError maps supervisor errors onto HTTP responses.
//
// Lifecycle preconditions (already running, not running, config change while
// live) are conflicts; spawn and termination failures are internal errors
// with a code the UI can act on.
func writeSupervisorError(w http.ResponseWriter, err error) {
	var (
		spawnErr *supervisor.SpawnError
		dirErr   *supervisor.DirectoryCreationError
		termErr  *supervisor.TerminationError
	)

	switch {
	case errors.Is(err, supervisor.ErrAlreadyRunning),
		errors.Is(err, supervisor.ErrNotRunning),
		errors.Is(err, supervisor.ErrRunning):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.As(err, &dirErr):
		writeError(w, http.StatusInternalServerError, ErrCodeDirCreate, err.Error())
	case errors.As(err, &spawnErr):
		writeError(w, http.StatusInternalServerError, ErrCodeSpawnFailed, err.Error())
	case errors.As(err, &termErr):
		writeError(w, http.StatusInternalServerError, ErrCodeTermination, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
