package database

import (
	"context"

	"github.com/rupeeq/callagent/internal/database/models"
)

// CallListFilter specifies filtering and pagination for call list queries.
type CallListFilter struct {
	Limit     int
	Offset    int
	Status    string // "active" | "completed" | "abandoned"
	Outcome   string // "completed" | "abandoned"
	Language  string
	Search    string // matches customer_name or agent_name
	StartDate string // inclusive lower bound on start_time
	EndDate   string // inclusive upper bound on start_time
}

// CallRepository manages call records.
type CallRepository interface {
	Create(ctx context.Context, call *models.Call) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Call, error)
	Update(ctx context.Context, call *models.Call) error
	List(ctx context.Context, filter CallListFilter) ([]models.Call, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.Call, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
	DailyStats(ctx context.Context, days int) ([]models.DailyStat, error)
	AverageSentiment(ctx context.Context) (*float64, error)
	AverageDuration(ctx context.Context) (float64, error)
}

// TranscriptRepository manages transcript lines.
type TranscriptRepository interface {
	Create(ctx context.Context, t *models.Transcript) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Transcript, error)
	Count(ctx context.Context) (int64, error)
}
