// Package session owns live call sessions: creating them, routing each
// customer utterance through the objection matcher and the dialogue state
// machine, and emitting the transcript and lifecycle events the rest of
// the system consumes.
package session

import (
	"sync"
	"time"
)

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Session carries all state for one ongoing call. All mutation happens
// under mu: inbound events for the same session are serialized so partial
// updates to collected data or the current state never interleave.
type Session struct {
	// ID is the unique session identifier (UUID).
	ID string

	// CustomerName and AgentName personalize prompt templates.
	CustomerName string
	AgentName    string

	// Language is fixed at creation and never changes afterwards.
	Language string

	// CurrentStateID is the script state the session sits in. Always a
	// valid member of the catalog.
	CurrentStateID string

	// Collected maps field name to the customer attribute value.
	Collected map[string]string

	// Retries counts clarify reprompts per state id.
	Retries map[string]int

	// Status is the lifecycle phase.
	Status Status

	// History is the ordered list of visited main-path states. It only
	// grows, and objection interceptions never appear in it.
	History []string

	// StartedAt is when the call began.
	StartedAt time.Time

	// lastStamp is the timestamp of the most recent transcript entry,
	// used to keep per-session timestamps strictly increasing.
	lastStamp time.Time

	// Sentiment accumulators over scored customer utterances.
	sentimentSum float64
	sentimentN   int

	mu sync.Mutex
}

// nextStamp returns a timestamp strictly after every previously issued
// one for this session, bumping by a microsecond when the clock has not
// advanced. Must be called with mu held.
func (s *Session) nextStamp(now time.Time) time.Time {
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

// recordSentiment folds an utterance score into the session average.
// Must be called with mu held.
func (s *Session) recordSentiment(score *float64) {
	if score == nil {
		return
	}
	s.sentimentSum += *score
	s.sentimentN++
}

// averageSentiment returns the mean sentiment over scored utterances, or
// nil when nothing was scored. Must be called with mu held.
func (s *Session) averageSentiment() *float64 {
	if s.sentimentN == 0 {
		return nil
	}
	avg := s.sentimentSum / float64(s.sentimentN)
	return &avg
}

// snapshotCollected copies the collected data for emission outside the
// session lock.
func (s *Session) snapshotCollected() map[string]string {
	out := make(map[string]string, len(s.Collected))
	for k, v := range s.Collected {
		out[k] = v
	}
	return out
}
