package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rupeeq/callagent/internal/database"
	"github.com/rupeeq/callagent/internal/database/models"
	"github.com/rupeeq/callagent/internal/session"
)

// startCallRequest is the payload for POST /calls.
type startCallRequest struct {
	CustomerName string `json:"customer_name"`
	AgentName    string `json:"agent_name"`
	Language     string `json:"language"`
}

// messageRequest is the payload for POST /calls/{sessionID}/messages.
type messageRequest struct {
	Message string `json:"message"`
}

// callResponse is the JSON shape of a call record.
type callResponse struct {
	ID            int64             `json:"id"`
	SessionID     string            `json:"session_id"`
	CustomerName  string            `json:"customer_name"`
	AgentName     string            `json:"agent_name"`
	Language      string            `json:"language"`
	Status        string            `json:"status"`
	Outcome       string            `json:"outcome,omitempty"`
	StartTime     string            `json:"start_time"`
	EndTime       *string           `json:"end_time"`
	Duration      int               `json:"duration"`
	Sentiment     *float64          `json:"sentiment,omitempty"`
	CollectedData map[string]string `json:"collected_data"`
}

// transcriptLine is the JSON shape of one transcript entry.
type transcriptLine struct {
	Speaker   string   `json:"speaker"`
	Message   string   `json:"message"`
	StateID   string   `json:"state_id"`
	Intent    string   `json:"intent,omitempty"`
	Sentiment *float64 `json:"sentiment,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// toCallResponse converts a models.Call to the API response.
func toCallResponse(c *models.Call) callResponse {
	resp := callResponse{
		ID:           c.ID,
		SessionID:    c.SessionID,
		CustomerName: c.CustomerName,
		AgentName:    c.AgentName,
		Language:     c.Language,
		Status:       c.Status,
		Outcome:      c.Outcome,
		StartTime:    c.StartTime.Format(time.RFC3339),
		Duration:     c.Duration,
		Sentiment:    c.Sentiment,
	}
	if c.EndTime != nil {
		s := c.EndTime.Format(time.RFC3339)
		resp.EndTime = &s
	}
	if err := json.Unmarshal([]byte(c.CollectedData), &resp.CollectedData); err != nil {
		resp.CollectedData = map[string]string{}
	}
	return resp
}

// handleStartCall creates a session and its call record and returns the
// opening line.
func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	start := time.Now().UTC()
	id, greeting, err := s.manager.StartCall(r.Context(), req.CustomerName, req.AgentName, req.Language)
	if err != nil {
		if errors.Is(err, session.ErrUnsupportedLanguage) {
			writeError(w, http.StatusBadRequest, "unsupported language")
			return
		}
		slog.Error("start call failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.calls.Create(r.Context(), &models.Call{
		SessionID:     id,
		CustomerName:  req.CustomerName,
		AgentName:     req.AgentName,
		Language:      req.Language,
		Status:        "active",
		StartTime:     start,
		CollectedData: "{}",
	}); err != nil {
		slog.Error("persisting call record failed", "error", err, "session_id", id)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"state_id":   greeting.StateID,
		"reply":      greeting.Text,
	})
}

// handleMessage feeds one customer utterance into the session.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req messageRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.manager.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("handle message failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]any{
		"session_id": sessionID,
		"state_id":   reply.Utterance.StateID,
		"reply":      reply.Utterance.Text,
		"ended":      reply.Ended != nil,
	}
	if reply.Ended != nil {
		resp["outcome"] = reply.Ended.Outcome
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEndCall force-ends the session. Idempotent.
func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	outcome, err := s.manager.EndCall(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("end call failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"outcome":    outcome,
	})
}

// callFilterFromQuery builds the repository filter from list/export query
// parameters. Status is validated; the rest pass through.
func callFilterFromQuery(r *http.Request, limit, offset int) (database.CallListFilter, string) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && status != "active" && status != "completed" && status != "abandoned" {
		return database.CallListFilter{}, "status must be \"active\", \"completed\", or \"abandoned\""
	}
	outcome := q.Get("outcome")
	if outcome != "" && outcome != "completed" && outcome != "abandoned" {
		return database.CallListFilter{}, "outcome must be \"completed\" or \"abandoned\""
	}
	return database.CallListFilter{
		Limit:     limit,
		Offset:    offset,
		Status:    status,
		Outcome:   outcome,
		Language:  q.Get("language"),
		Search:    q.Get("search"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}, ""
}

// handleListCalls returns calls with pagination and optional filters.
// Query params: limit, offset, status, outcome, language, search,
// start_date, end_date.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	filter, errMsg := callFilterFromQuery(r, pg.Limit, pg.Offset)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	calls, total, err := s.calls.List(r.Context(), filter)
	if err != nil {
		slog.Error("list calls: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]callResponse, len(calls))
	for i := range calls {
		items[i] = toCallResponse(&calls[i])
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleGetCall returns a single call with its full transcript.
func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	call, err := s.calls.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		slog.Error("get call: failed to query", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if call == nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}

	lines, err := s.transcripts.ListBySession(r.Context(), sessionID)
	if err != nil {
		slog.Error("get call: failed to load transcript", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	transcript := make([]transcriptLine, len(lines))
	for i, l := range lines {
		transcript[i] = transcriptLine{
			Speaker:   l.Speaker,
			Message:   l.Message,
			StateID:   l.StateID,
			Intent:    l.Intent,
			Sentiment: l.Sentiment,
			Timestamp: l.Timestamp.Format(time.RFC3339Nano),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"call":       toCallResponse(call),
		"transcript": transcript,
	})
}

// handleExportCalls exports calls as CSV with the same filters as list.
func (s *Server) handleExportCalls(w http.ResponseWriter, r *http.Request) {
	filter, errMsg := callFilterFromQuery(r, s.cfg.ExportLimit, 0)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	calls, _, err := s.calls.List(r.Context(), filter)
	if err != nil {
		slog.Error("export calls: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=calls.csv")

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"ID", "Session ID", "Customer", "Agent", "Language", "Status",
		"Outcome", "Start Time", "End Time", "Duration", "Sentiment",
		"Collected Data",
	})

	for _, c := range calls {
		endTime := ""
		if c.EndTime != nil {
			endTime = c.EndTime.Format(time.RFC3339)
		}
		sentiment := ""
		if c.Sentiment != nil {
			sentiment = strconv.FormatFloat(*c.Sentiment, 'f', 2, 64)
		}

		cw.Write([]string{
			strconv.FormatInt(c.ID, 10),
			c.SessionID,
			c.CustomerName,
			c.AgentName,
			c.Language,
			c.Status,
			c.Outcome,
			c.StartTime.Format(time.RFC3339),
			endTime,
			strconv.Itoa(c.Duration),
			sentiment,
			c.CollectedData,
		})
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("export calls: csv write error", "error", err)
	}
}
