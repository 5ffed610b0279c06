package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/session"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/tasks"
)

const sessionGoneMessage = "Session not found or expired"

type chatRequest struct {
	SessionID             string   `json:"sessionId"`
	JobTitle              string   `json:"jobTitle"`
	Message               string   `json:"message"`
	InitialTasks          []string `json:"initialTasks"`
	SelectedSuggestionIDs []string `json:"selectedSuggestionIds"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.postChat(w, r)
	case http.MethodGet:
		s.getChat(w, r)
	case http.MethodPatch:
		s.patchChat(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// postChat starts a session when no sessionId is given, otherwise
// processes one message turn.
func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	if req.SessionID == "" {
		if strings.TrimSpace(req.JobTitle) == "" {
			s.writeError(w, &ValidationError{Field: "jobTitle", Reason: "required to start a session"})
			return
		}
		resp, err := s.orchestrator.StartSession(r.Context(), req.JobTitle, req.InitialTasks)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, &ValidationError{Field: "message", Reason: "required"})
		return
	}
	resp, err := s.orchestrator.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		s.writeError(w, &ValidationError{Field: "sessionId", Reason: "required"})
		return
	}
	st, err := s.orchestrator.GetState(sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"state":     st,
	})
}

func (s *Server) patchChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.SessionID == "" {
		s.writeError(w, &ValidationError{Field: "sessionId", Reason: "required"})
		return
	}
	st, err := s.orchestrator.SelectSuggestions(req.SessionID, req.SelectedSuggestionIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": req.SessionID,
		"state":     st,
	})
}

type streamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleChatStream replays one turn over SSE: chunk events while the
// reply is composed, then a single done event with the full response.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		s.writeError(w, &ValidationError{Field: "sessionId/message", Reason: "required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(ev streamEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	resp, err := s.orchestrator.HandleMessageStream(r.Context(), req.SessionID, req.Message, func(content string) {
		emit(streamEvent{Type: "chunk", Content: content})
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, session.ErrSessionNotFound) {
			msg = sessionGoneMessage
		}
		emit(streamEvent{Type: "error", Error: msg})
		return
	}

	// The done event carries the full ChatResponse next to the type tag.
	done := map[string]any{"type": "done"}
	if data, err := json.Marshal(resp); err == nil {
		_ = json.Unmarshal(data, &done)
		done["type"] = "done"
	}
	if data, err := json.Marshal(done); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

type processRequest struct {
	JobTitle   string      `json:"jobTitle"`
	Transcript []chat.Turn `json:"transcript"`
}

func (s *Server) handleTasksProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if len(req.Transcript) == 0 {
		s.writeError(w, &ValidationError{Field: "transcript", Reason: "required"})
		return
	}

	records := s.pipeline.ProcessFast(r.Context(), req.JobTitle, req.Transcript)
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": records})
}

type matchRequest struct {
	Tasks []tasks.TaskRecord `json:"tasks"`
}

func (s *Server) handleTasksMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if len(req.Tasks) == 0 {
		s.writeError(w, &ValidationError{Field: "tasks", Reason: "required"})
		return
	}

	records := s.pipeline.Match(r.Context(), req.Tasks)
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": records})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobTitle := r.URL.Query().Get("jobTitle")
	if strings.TrimSpace(jobTitle) == "" {
		s.writeError(w, &ValidationError{Field: "jobTitle", Reason: "required"})
		return
	}

	var suggestions []string
	if s.taxonomy != nil && s.taxonomy.Configured() {
		var err error
		suggestions, err = s.taxonomy.ReferenceTasks(r.Context(), jobTitle, 0)
		if err != nil {
			s.logger.Warn().Err(err).Msg("reference task lookup failed")
			suggestions = nil
		}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobTitle":    jobTitle,
		"suggestions": suggestions,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"llmConfigured":      s.llm != nil && s.llm.Configured(),
		"taxonomyConfigured": s.taxonomy != nil && s.taxonomy.Configured(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("write response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, session.ErrSessionNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": sessionGoneMessage})
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
