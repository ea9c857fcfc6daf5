package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rupeeq/callagent/internal/database/models"
)

const callColumns = `id, session_id, customer_name, agent_name, language,
	 status, outcome, start_time, end_time, duration, sentiment_score,
	 collected_data`

// callRepo implements CallRepository.
type callRepo struct {
	db *DB
}

// NewCallRepository creates a new CallRepository.
func NewCallRepository(db *DB) CallRepository {
	return &callRepo{db: db}
}

// Create inserts a new call record.
func (r *callRepo) Create(ctx context.Context, call *models.Call) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO calls (session_id, customer_name, agent_name, language,
		 status, outcome, start_time, end_time, duration, sentiment_score,
		 collected_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.SessionID, call.CustomerName, call.AgentName, call.Language,
		call.Status, call.Outcome, call.StartTime, call.EndTime,
		call.Duration, call.Sentiment, call.CollectedData,
	)
	if err != nil {
		return fmt.Errorf("inserting call: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

// GetBySessionID returns the call for a session id, or nil when unknown.
func (r *callRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Call, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE session_id = ?`, sessionID,
	))
}

// Update modifies an existing call record.
func (r *callRepo) Update(ctx context.Context, call *models.Call) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calls SET customer_name = ?, agent_name = ?, language = ?,
		 status = ?, outcome = ?, start_time = ?, end_time = ?, duration = ?,
		 sentiment_score = ?, collected_data = ?
		 WHERE session_id = ?`,
		call.CustomerName, call.AgentName, call.Language, call.Status,
		call.Outcome, call.StartTime, call.EndTime, call.Duration,
		call.Sentiment, call.CollectedData, call.SessionID,
	)
	if err != nil {
		return fmt.Errorf("updating call: %w", err)
	}
	return nil
}

// List returns calls matching the filter, along with the total count.
func (r *callRepo) List(ctx context.Context, filter CallListFilter) ([]models.Call, int, error) {
	where := "1=1"
	args := []any{}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Outcome != "" {
		where += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}
	if filter.Language != "" {
		where += " AND language = ?"
		args = append(args, filter.Language)
	}
	if filter.Search != "" {
		where += " AND (customer_name LIKE ? OR agent_name LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s)
	}
	if filter.StartDate != "" {
		where += " AND start_time >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		where += " AND start_time <= ?"
		args = append(args, filter.EndDate)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM calls WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting calls: %w", err)
	}

	query := `SELECT ` + callColumns + ` FROM calls WHERE ` + where +
		` ORDER BY start_time DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	calls, err := scanCalls(rows)
	if err != nil {
		return nil, 0, err
	}
	return calls, total, nil
}

// ListRecent returns the most recent calls up to the given limit.
func (r *callRepo) ListRecent(ctx context.Context, limit int) ([]models.Call, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+callColumns+` FROM calls ORDER BY start_time DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent calls: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// CountByStatus returns call counts grouped by status.
func (r *callRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, "status")
}

// CountByOutcome returns call counts grouped by outcome, skipping calls
// that have not ended yet.
func (r *callRepo) CountByOutcome(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, "outcome")
}

func (r *callRepo) countGrouped(ctx context.Context, column string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM calls WHERE `+column+` != '' GROUP BY `+column)
	if err != nil {
		return nil, fmt.Errorf("counting calls by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning %s count: %w", column, err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s counts: %w", column, err)
	}
	return counts, nil
}

// DailyStats returns per-day call counts over the trailing window.
func (r *callRepo) DailyStats(ctx context.Context, days int) ([]models.DailyStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date(start_time), COUNT(*) FROM calls
		 WHERE start_time >= datetime('now', '-' || ? || ' days')
		 GROUP BY date(start_time) ORDER BY date(start_time)`, days)
	if err != nil {
		return nil, fmt.Errorf("querying daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var s models.DailyStat
		if err := rows.Scan(&s.Date, &s.Count); err != nil {
			return nil, fmt.Errorf("scanning daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily stats: %w", err)
	}
	return stats, nil
}

// AverageSentiment returns the mean sentiment over scored calls, or nil
// when no call carries a score.
func (r *callRepo) AverageSentiment(ctx context.Context) (*float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(sentiment_score) FROM calls WHERE sentiment_score IS NOT NULL`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("averaging sentiment: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// AverageDuration returns the mean duration in seconds over ended calls.
func (r *callRepo) AverageDuration(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(duration) FROM calls WHERE end_time IS NOT NULL`).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("averaging duration: %w", err)
	}
	return avg.Float64, nil
}

func (r *callRepo) scanOne(row *sql.Row) (*models.Call, error) {
	var c models.Call
	err := row.Scan(&c.ID, &c.SessionID, &c.CustomerName, &c.AgentName,
		&c.Language, &c.Status, &c.Outcome, &c.StartTime, &c.EndTime,
		&c.Duration, &c.Sentiment, &c.CollectedData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call: %w", err)
	}
	return &c, nil
}

func scanCalls(rows *sql.Rows) ([]models.Call, error) {
	var calls []models.Call
	for rows.Next() {
		var c models.Call
		if err := rows.Scan(&c.ID, &c.SessionID, &c.CustomerName, &c.AgentName,
			&c.Language, &c.Status, &c.Outcome, &c.StartTime, &c.EndTime,
			&c.Duration, &c.Sentiment, &c.CollectedData); err != nil {
			return nil, fmt.Errorf("scanning call row: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call rows: %w", err)
	}
	return calls, nil
}
