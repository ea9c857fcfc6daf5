package api

import (
	"log/slog"
	"net/http"
	"time"
)

// handleDashboardStats returns aggregate statistics for the operations
// dashboard. Individual query failures degrade to zero values rather than
// failing the whole response.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	byStatus, err := s.calls.CountByStatus(ctx)
	if err != nil {
		slog.Error("dashboard stats: failed to count by status", "error", err)
		byStatus = map[string]int{}
	}

	byOutcome, err := s.calls.CountByOutcome(ctx)
	if err != nil {
		slog.Error("dashboard stats: failed to count by outcome", "error", err)
		byOutcome = map[string]int{}
	}

	totalCalls := 0
	for _, n := range byStatus {
		totalCalls += n
	}

	avgSentiment, err := s.calls.AverageSentiment(ctx)
	if err != nil {
		slog.Error("dashboard stats: failed to average sentiment", "error", err)
	}

	avgDuration, err := s.calls.AverageDuration(ctx)
	if err != nil {
		slog.Error("dashboard stats: failed to average duration", "error", err)
	}

	daily, err := s.calls.DailyStats(ctx, 7)
	if err != nil {
		slog.Error("dashboard stats: failed to load daily stats", "error", err)
		daily = nil
	}

	transcriptLines, err := s.transcripts.Count(ctx)
	if err != nil {
		slog.Error("dashboard stats: failed to count transcripts", "error", err)
	}

	recent, err := s.calls.ListRecent(ctx, 10)
	if err != nil {
		slog.Error("dashboard stats: failed to list recent calls", "error", err)
		recent = nil
	}

	type recentCallEntry struct {
		SessionID string `json:"session_id"`
		Customer  string `json:"customer"`
		Agent     string `json:"agent"`
		Language  string `json:"language"`
		Status    string `json:"status"`
		Duration  int    `json:"duration"`
		Timestamp string `json:"timestamp"`
	}

	recentEntries := make([]recentCallEntry, 0, len(recent))
	for _, c := range recent {
		recentEntries = append(recentEntries, recentCallEntry{
			SessionID: c.SessionID,
			Customer:  c.CustomerName,
			Agent:     c.AgentName,
			Language:  c.Language,
			Status:    c.Status,
			Duration:  c.Duration,
			Timestamp: c.StartTime.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active_calls":         s.store.ActiveCount(),
		"total_calls":          totalCalls,
		"calls_by_status":      byStatus,
		"calls_by_outcome":     byOutcome,
		"average_sentiment":    avgSentiment,
		"average_duration_sec": avgDuration,
		"transcript_lines":     transcriptLines,
		"daily_calls":          daily,
		"recent_calls":         recentEntries,
	})
}
