// Package event defines the outbound boundary of the conversation engine.
// Storage, metrics, and the live dashboard all consume the engine's output
// exclusively through the Sink interface; the engine has no knowledge of
// how entries are persisted or displayed.
package event

import (
	"context"
	"errors"
	"time"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// Call outcomes reported in SessionEnded notifications.
const (
	OutcomeCompleted = "completed"
	OutcomeAbandoned = "abandoned"
)

// TranscriptEntry is one timestamped line of a call transcript.
// Timestamps are strictly increasing within a session.
type TranscriptEntry struct {
	SessionID string    `json:"session_id"`
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	StateID   string    `json:"state_id"`
	Intent    string    `json:"intent,omitempty"`
	Sentiment *float64  `json:"sentiment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentUtterance is the engine's next line for the rendering collaborator
// (TTS or on-screen display).
type AgentUtterance struct {
	SessionID string `json:"session_id"`
	StateID   string `json:"state_id"`
	Text      string `json:"text"`
}

// SessionEnded is emitted exactly once when a session reaches a terminal
// state, either by completing the script or by an explicit end-call.
type SessionEnded struct {
	SessionID     string            `json:"session_id"`
	Outcome       string            `json:"outcome"`
	CollectedData map[string]string `json:"collected_data"`
	Sentiment     *float64          `json:"sentiment,omitempty"`
	EndedAt       time.Time         `json:"ended_at"`
}

// Sink receives transcript entries and session lifecycle notifications.
// Implementations must be safe for concurrent use; entries for the same
// session are always delivered in order.
type Sink interface {
	Append(ctx context.Context, entry TranscriptEntry) error
	Notify(ctx context.Context, ended SessionEnded) error
}

// MultiSink fans events out to several sinks. Every sink receives every
// event even if an earlier sink fails; errors are joined.
type MultiSink []Sink

// Append delivers the entry to all sinks.
func (m MultiSink) Append(ctx context.Context, entry TranscriptEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify delivers the notification to all sinks.
func (m MultiSink) Notify(ctx context.Context, ended SessionEnded) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, ended); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure MultiSink satisfies Sink.
var _ Sink = (MultiSink)(nil)
