package worker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Pamacea/claude-mem/internal/protocol"
	"github.com/Pamacea/claude-mem/internal/store"
	"github.com/Pamacea/claude-mem/internal/version"
)

func (s *Service) routes() http.Handler {
	r := chi.NewRouter()

	r.Get(protocol.PathHealth, s.metrics.instrument("health", s.handleHealth))
	r.Get(protocol.PathReadiness, s.metrics.instrument("readiness", s.handleReadiness))
	r.Get(protocol.PathVersion, s.metrics.instrument("version", s.handleVersion))
	r.Handle("/metrics", s.metrics.handler())
	r.Get("/ws", s.hub.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Post(protocol.PathInit, s.metrics.instrument("init", s.handleInit))
		r.Get(protocol.PathSessions, s.metrics.instrument("sessions", s.handleSessions))
		r.Post(protocol.PathSessions+"/{sessionID}/prompt", s.metrics.instrument("prompt", s.handlePrompt))
		r.Post(protocol.PathSessions+"/{sessionID}/observation", s.metrics.instrument("observation", s.handleObservation))
		r.Post(protocol.PathSessions+"/{sessionID}/prepare", s.metrics.instrument("prepare", s.handlePrepare))
		r.Post(protocol.PathSessions+"/{sessionID}/compress", s.metrics.instrument("compress", s.handleCompress))
	})

	return r
}

// requireReady gates the session API until async initialization finishes.
// Health, readiness, and version stay reachable the whole time so probes
// can tell "starting" from "gone".
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "worker is still initializing")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := protocol.StatusStarting
	if s.ready.Load() {
		status = protocol.StatusReady
	}
	if s.initErr.Load() != nil {
		status = protocol.StatusError
	}
	writeJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:  status,
		Version: version.Version,
	})
}

func (s *Service) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if msg := s.initErr.Load(); msg != nil {
		writeError(w, http.StatusServiceUnavailable, "initialization failed: "+*msg)
		return
	}
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "worker is still initializing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": protocol.StatusReady})
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.VersionResponse{Version: version.Version})
}

func (s *Service) handleInit(w http.ResponseWriter, r *http.Request) {
	var req protocol.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "claudeSessionId is required")
		return
	}

	id, created, err := s.store.CreateSession(req.SessionID, req.Project, req.CWD)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info().Str("session", req.SessionID).Bool("created", created).Msg("session init")
	s.broadcastSession(protocol.EventSessionStarted, req.SessionID)

	writeJSON(w, http.StatusOK, protocol.InitResponse{SessionDBID: id, Created: created})
}

func (s *Service) handlePrompt(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req protocol.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	number, err := s.store.SavePrompt(sessionID, req.Prompt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastSession(protocol.EventPromptRecorded, sessionID)
	writeJSON(w, http.StatusOK, protocol.PromptResponse{PromptNumber: number})
}

func (s *Service) handleObservation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req protocol.ObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "tool_name is required")
		return
	}

	id, pending, err := s.store.SaveObservation(sessionID, req.ToolName, req.ToolInput, req.ToolResponse, req.CWD)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastSession(protocol.EventObservationSaved, sessionID)
	writeJSON(w, http.StatusOK, protocol.ObservationResponse{ObservationID: id, Pending: pending})
}

func (s *Service) handlePrepare(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	pending, err := s.store.MarkPreparing(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, protocol.PrepareResponse{Pending: pending})
}

func (s *Service) handleCompress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req protocol.CompressRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary := s.composeSummary(sessionID, req)
	summaryID, folded, err := s.store.Compress(sessionID, summary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info().Str("session", sessionID).Int("observations", folded).Msg("session compressed")
	s.broadcastSession(protocol.EventSessionCompacted, sessionID)

	writeJSON(w, http.StatusOK, protocol.CompressResponse{SummaryID: summaryID, Observations: folded})
}

func (s *Service) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.RecentSessions(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := protocol.SessionsResponse{Sessions: make([]protocol.SessionInfo, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, sessionInfo(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

// composeSummary builds the summary text stored for a compressed session.
func (s *Service) composeSummary(sessionID string, req protocol.CompressRequest) string {
	var parts []string
	if sess, err := s.store.GetSession(sessionID); err == nil {
		parts = append(parts, fmt.Sprintf("Session %s in %s: %d prompts.", sessionID, sess.Project, sess.PromptCount))
	}
	if req.LastUserMessage != "" {
		parts = append(parts, "Last user message: "+req.LastUserMessage)
	}
	if req.LastAssistantMessage != "" {
		parts = append(parts, "Last assistant message: "+req.LastAssistantMessage)
	}
	if len(parts) == 0 {
		return "Session " + sessionID
	}
	return strings.Join(parts, "\n")
}

func (s *Service) broadcastSession(eventType, sessionID string) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		s.hub.Broadcast(protocol.Event{Type: eventType})
		return
	}
	info := sessionInfo(*sess)
	s.hub.Broadcast(protocol.Event{Type: eventType, Session: &info})
}

func sessionInfo(sess store.Session) protocol.SessionInfo {
	return protocol.SessionInfo{
		ID:           sess.ID,
		SessionID:    sess.SessionID,
		Project:      sess.Project,
		Status:       sess.Status,
		Prompts:      sess.PromptCount,
		Observations: sess.Observations,
		StartedAt:    sess.StartedAt,
		EndedAt:      sess.EndedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
