// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/zonectl/internal/domain/session/manager"
	"github.com/ManuGH/zonectl/internal/log"
)

// errorBody is the JSON error envelope of every non-2xx response.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, kind, detail string) {
	writeJSON(w, code, errorBody{
		Error:     kind,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)
	if code >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "api.request_failed").Msg("request failed")
	}
	writeProblem(w, r, code, kind, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, manager.ErrInvalidServer):
		return http.StatusBadRequest, "invalid_server"
	case errors.Is(err, manager.ErrUnknownCommand):
		return http.StatusBadRequest, "unknown_command"
	case errors.Is(err, manager.ErrUsage):
		return http.StatusBadRequest, "usage"
	case errors.Is(err, manager.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, manager.ErrSessionExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, manager.ErrSupervisorClosed), errors.Is(err, manager.ErrSessionClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
