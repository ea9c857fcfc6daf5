package database

import (
	"context"
	"fmt"

	"github.com/rupeeq/callagent/internal/database/models"
)

// transcriptRepo implements TranscriptRepository.
type transcriptRepo struct {
	db *DB
}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(db *DB) TranscriptRepository {
	return &transcriptRepo{db: db}
}

// Create inserts a transcript line.
func (r *transcriptRepo) Create(ctx context.Context, t *models.Transcript) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO transcripts (session_id, speaker, message, state_id,
		 intent, sentiment, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Speaker, t.Message, t.StateID, t.Intent,
		t.Sentiment, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting transcript: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	t.ID = id
	return nil
}

// ListBySession returns a session's transcript in timestamp order.
func (r *transcriptRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Transcript, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, speaker, message, state_id, intent,
		 sentiment, timestamp
		 FROM transcripts WHERE session_id = ? ORDER BY timestamp`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	defer rows.Close()

	var out []models.Transcript
	for rows.Next() {
		var t models.Transcript
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Speaker, &t.Message,
			&t.StateID, &t.Intent, &t.Sentiment, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning transcript row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcript rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of transcript lines.
func (r *transcriptRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transcripts: %w", err)
	}
	return n, nil
}
