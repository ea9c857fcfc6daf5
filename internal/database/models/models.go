package models

import "time"

// Call represents one outbound call, live or finished.
type Call struct {
	ID            int64
	SessionID     string
	CustomerName  string
	AgentName     string
	Language      string
	Status        string // "active" | "completed" | "abandoned"
	Outcome       string
	StartTime     time.Time
	EndTime       *time.Time
	Duration      int // seconds
	Sentiment     *float64
	CollectedData string // JSON object of field -> value
}

// Transcript represents one line of a call transcript.
type Transcript struct {
	ID        int64
	SessionID string
	Speaker   string // "agent" | "customer"
	Message   string
	StateID   string
	Intent    string
	Sentiment *float64
	Timestamp time.Time
}

// DailyStat is the per-day call count used by the dashboard chart.
type DailyStat struct {
	Date  string // YYYY-MM-DD
	Count int
}
