package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dzpanel/dzpanel/internal/dayz"
	"github.com/dzpanel/dzpanel/internal/events"
	"github.com/dzpanel/dzpanel/internal/supervisor"
)

// statusResponse is the JSON shape of a status snapshot.
type statusResponse struct {
	IsRunning bool        `json:"isRunning"`
	Players   int         `json:"players"`
	Uptime    string      `json:"uptime"`
	PID       int         `json:"pid,omitempty"`
	RestartAt string      `json:"restartAt,omitempty"`
	Config    dayz.Config `json:"config"`
	Mods      []string    `json:"mods"`
}

func statusPayload(st supervisor.Status) statusResponse {
	resp := statusResponse{
		IsRunning: st.Running,
		Players:   st.Players,
		Uptime:    st.Uptime,
		PID:       st.PID,
		Config:    st.Config,
		Mods:      st.Mods,
	}
	if !st.RestartAt.IsZero() {
		resp.RestartAt = st.RestartAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// handleStart starts the game server.
//
// The launch is detached from the request context: a client that gives up
// mid-grace-period must not abort the start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if err := s.sup.Start(ctx); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(s.sup.Status()))
}

// handleStop stops the game server.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if err := s.sup.Stop(ctx); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(s.sup.Status()))
}

// handleStatus returns the current server snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusPayload(s.sup.Status()))
}

// handleUpdateConfig applies a partial launch-configuration update.
// Rejected while the server is running.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	// Partial update: fields absent from the body keep their current values.
	cfg := s.sup.Status().Config
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.sup.UpdateConfig(cfg); err != nil {
		if isLifecycleError(err) {
			writeSupervisorError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(s.sup.Status()))
}

// modsRequest is the body of POST /api/server/mods.
type modsRequest struct {
	Mods []string `json:"mods"`
}

// handleUpdateMods replaces the ordered mod list. Rejected while the server
// is running.
func (s *Server) handleUpdateMods(w http.ResponseWriter, r *http.Request) {
	var req modsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Mods == nil {
		writeBadRequest(w, "mods field is required")
		return
	}

	if err := s.sup.UpdateMods(req.Mods); err != nil {
		if isLifecycleError(err) {
			writeSupervisorError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(s.sup.Status()))
}

// isLifecycleError reports whether err is a state precondition rather than
// a validation failure.
func isLifecycleError(err error) bool {
	return errors.Is(err, supervisor.ErrAlreadyRunning) ||
		errors.Is(err, supervisor.ErrNotRunning) ||
		errors.Is(err, supervisor.ErrRunning)
}

// handleConsole returns the most recent captured output lines. The optional
// lines query parameter trims the response to the newest N lines.
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	lines := s.sup.Console().Lines()

	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "lines must be a non-negative integer")
			return
		}
		if n < len(lines) {
			lines = lines[len(lines)-n:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"count": len(lines),
	})
}

// handleEvents lists lifecycle events, newest first. Supports type, since,
// limit, and offset query parameters.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := events.Filter{
		Type: r.URL.Query().Get("type"),
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
