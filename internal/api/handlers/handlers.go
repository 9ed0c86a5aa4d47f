// Package handlers implements the HTTP handlers for the session
// lifecycle surface.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/finsight-ai/finsight/internal/scheduler"
	"github.com/finsight-ai/finsight/internal/session"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store     *session.Store
	Scheduler *scheduler.Scheduler
}

// New creates a Handlers instance.
func New(store *session.Store, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		Store:     store,
		Scheduler: sched,
	}
}

type createSessionRequest struct {
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name,omitempty"`
}

type createSessionResponse struct {
	SessionID string         `json:"session_id"`
	Subject   string         `json:"subject"`
	Status    session.Status `json:"status"`
}

// CreateSession registers a new analysis session in the "created" state.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	sess := h.Store.Create(req.Subject, req.DisplayName, h.Scheduler.TotalAgents())
	log.Info().Str("session", sess.ID).Str("subject", sess.Subject).Msg("session created")

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		Subject:   sess.Subject,
		Status:    sess.Status,
	})
}

// ListSessions returns a snapshot of every live session.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Store.List())
}

// StartSession transitions a session from "created" to "running".
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.Store.Start(sessionID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

// GetSession returns the polling snapshot of a session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	view, err := h.Store.GetStatus(sessionID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GetAgentResult returns one agent's recorded outcome. Agents that have
// not reported yet yield a pending placeholder, not a 404.
func (h *Handlers) GetAgentResult(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	agentID := chi.URLParam(r, "agentID")

	result, err := h.Store.GetAgentResult(sessionID, agentID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type updateAgentRequest struct {
	Status    session.AgentStatus `json:"status"`
	Output    string              `json:"output,omitempty"`
	Tokens    int                 `json:"tokens,omitempty"`
	Trace     []string            `json:"trace,omitempty"`
	Citations []string            `json:"citations,omitempty"`
	Error     string              `json:"error,omitempty"`
	Progress  *int                `json:"progress,omitempty"`
	Stage     *int                `json:"stage,omitempty"`
}

// UpdateAgentResult records one agent's outcome, typically called by an
// external driver rather than the built-in scheduler.
func (h *Handlers) UpdateAgentResult(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	agentID := chi.URLParam(r, "agentID")

	var req updateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "status is required")
		return
	}

	progress, err := h.Store.Update(sessionID, agentID, session.AgentUpdate{
		Status:    req.Status,
		Output:    req.Output,
		Tokens:    req.Tokens,
		Thoughts:  req.Trace,
		Citations: req.Citations,
		Error:     req.Error,
		Progress:  req.Progress,
		Stage:     req.Stage,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"progress": progress})
}

type completeSessionRequest struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CompleteSession moves a session to its terminal state.
func (h *Handlers) CompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.Store.Complete(sessionID, req.Success, req.Error)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]session.Status{"status": status})
}

// DeleteSession removes a session immediately.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.Store.Delete(sessionID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

type analyzeRequest struct {
	Directive string `json:"directive,omitempty"`
}

// Analyze starts the session and drives the full pipeline in the
// background. The caller polls the session for progress.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req analyzeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.Store.Start(sessionID); err != nil {
		respondStoreError(w, err)
		return
	}

	go func() {
		if err := h.Scheduler.Resume(context.Background(), sessionID, req.Directive); err != nil {
			log.Error().Str("session", sessionID).Err(err).Msg("analysis run failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
		"status":     string(session.StatusRunning),
	})
}

// Pipeline describes the configured agent stages, useful for clients that
// want to render per-stage progress.
func (h *Handlers) Pipeline(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"total_agents": h.Scheduler.TotalAgents(),
		"stages":       h.Scheduler.Stages(),
	})
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
