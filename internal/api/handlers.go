// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ManuGH/zonectl/internal/domain/session/manager"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/log"
)

const maxBodyBytes = 64 << 10

// HeaderCorrelationID lets callers supply the correlation id of a command.
const HeaderCorrelationID = "X-Correlation-ID"

type commandRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Author  string   `json:"author"`
}

type commandAccepted struct {
	ResourceID    string `json:"resourceId"`
	Command       string `json:"command"`
	CorrelationID string `json:"correlationId"`
}

type commandInfo struct {
	ID      string `json:"id"`
	Usage   string `json:"usage"`
	Help    string `json:"help"`
	MinArgs int    `json:"minArgs"`
	MaxArgs int    `json:"maxArgs"`
}

func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	var srv model.Server
	if err := decodeBody(r, &srv); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := s.sessions.Register(r.Context(), srv); err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "api.server_registered").
		Str(log.FieldResourceID, srv.Key().ID()).
		Str(log.FieldServerName, srv.Name).
		Msg("server registered")

	w.Header().Set("Location", "/api/v1/servers/"+srv.Key().ID())
	snap, ok := s.sessions.Get(srv.Key().ID())
	if !ok {
		writeJSON(w, http.StatusCreated, srv)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	key := resourceKey(r)
	snap, ok := s.sessions.Get(key.ID())
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", manager.ErrSessionNotFound, key.ID()))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	key := resourceKey(r)
	if err := s.sessions.Remove(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "api.server_removed").
		Str(log.FieldResourceID, key.ID()).
		Msg("server removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Command == "" {
		writeProblem(w, r, http.StatusBadRequest, "invalid_body", "command is required")
		return
	}

	correlationID := r.Header.Get(HeaderCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx := log.ContextWithCorrelationID(r.Context(), correlationID)

	id := resourceKey(r).ID()
	cmd := manager.Command{
		ID:            req.Command,
		Args:          req.Args,
		Author:        req.Author,
		CorrelationID: correlationID,
	}
	if err := s.sessions.Dispatch(ctx, id, cmd); err != nil {
		writeError(w, r.WithContext(ctx), err)
		return
	}

	w.Header().Set(HeaderCorrelationID, correlationID)
	writeJSON(w, http.StatusAccepted, commandAccepted{
		ResourceID:    id,
		Command:       req.Command,
		CorrelationID: correlationID,
	})
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	specs := manager.Commands()
	out := make([]commandInfo, 0, len(specs))
	for _, c := range specs {
		out = append(out, commandInfo{ID: c.ID, Usage: c.Format, Help: c.Help, MinArgs: c.MinArgs, MaxArgs: c.MaxArgs})
	}
	writeJSON(w, http.StatusOK, out)
}

func resourceKey(r *http.Request) model.ResourceKey {
	return model.ResourceKey{
		GuildID: chi.URLParam(r, "guild"),
		Token:   chi.URLParam(r, "token"),
	}
}

// decodeBody decodes a single JSON object and rejects unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
