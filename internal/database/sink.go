package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rupeeq/callagent/internal/database/models"
	"github.com/rupeeq/callagent/internal/event"
)

// StoreSink persists transcript entries and call outcomes through the
// repositories. It is the durable half of the event fanout: the live feed
// only mirrors what this sink records.
type StoreSink struct {
	calls       CallRepository
	transcripts TranscriptRepository
	logger      *slog.Logger
}

// NewStoreSink creates a StoreSink over the given repositories.
func NewStoreSink(calls CallRepository, transcripts TranscriptRepository, logger *slog.Logger) *StoreSink {
	return &StoreSink{
		calls:       calls,
		transcripts: transcripts,
		logger:      logger.With("subsystem", "store_sink"),
	}
}

// Append records one transcript line.
func (s *StoreSink) Append(ctx context.Context, e event.TranscriptEntry) error {
	return s.transcripts.Create(ctx, &models.Transcript{
		SessionID: e.SessionID,
		Speaker:   string(e.Speaker),
		Message:   e.Message,
		StateID:   e.StateID,
		Intent:    e.Intent,
		Sentiment: e.Sentiment,
		Timestamp: e.Timestamp,
	})
}

// Notify closes out the call record with its outcome, duration, collected
// data, and sentiment average.
func (s *StoreSink) Notify(ctx context.Context, e event.SessionEnded) error {
	call, err := s.calls.GetBySessionID(ctx, e.SessionID)
	if err != nil {
		return fmt.Errorf("loading call %s: %w", e.SessionID, err)
	}
	if call == nil {
		// The call row is created by the API layer right after session
		// start; a miss here means it was never persisted.
		s.logger.Warn("no call record for ended session", "session_id", e.SessionID)
		return nil
	}

	collected, err := json.Marshal(e.CollectedData)
	if err != nil {
		return fmt.Errorf("encoding collected data: %w", err)
	}

	endTime := e.EndedAt
	call.Status = e.Outcome
	call.Outcome = e.Outcome
	call.EndTime = &endTime
	call.Duration = int(e.EndedAt.Sub(call.StartTime).Seconds())
	call.Sentiment = e.Sentiment
	call.CollectedData = string(collected)

	return s.calls.Update(ctx, call)
}

// Ensure StoreSink satisfies event.Sink.
var _ event.Sink = (*StoreSink)(nil)
