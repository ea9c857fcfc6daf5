package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rupeeq/callagent/internal/dialogue"
	"github.com/rupeeq/callagent/internal/event"
	"github.com/rupeeq/callagent/internal/objection"
	"github.com/rupeeq/callagent/internal/script"
)

// ErrSessionNotFound is returned when an event references an unknown or
// already ended session id. No state is mutated in that case.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnsupportedLanguage is returned by StartCall when the script carries
// no prompts for the requested language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Reply is the engine's response to one inbound customer message.
type Reply struct {
	// Utterance is the agent's next line.
	Utterance event.AgentUtterance

	// Entries are the transcript entries produced by this step, in
	// emission order (customer first, then agent).
	Entries []event.TranscriptEntry

	// Ended is set when this message drove the session to a terminal
	// state.
	Ended *event.SessionEnded
}

// Manager owns live sessions and is the only component that mutates them.
// Each session is a single-writer resource: its mutex serializes
// HandleMessage and EndCall so exactly one event mutates a given session
// at a time. The catalog and objection set are immutable after boot, so
// no global lock is needed across sessions.
type Manager struct {
	catalog *script.Catalog
	matcher *objection.Matcher
	machine *dialogue.Machine
	store   Store
	sink    event.Sink
	logger  *slog.Logger

	// nowFunc is swapped in tests for deterministic timestamps.
	nowFunc func() time.Time

	messagesTotal   atomic.Uint64
	objectionsTotal atomic.Uint64
}

// NewManager wires a Manager from its immutable collaborators.
func NewManager(catalog *script.Catalog, matcher *objection.Matcher, store Store, sink event.Sink, logger *slog.Logger) *Manager {
	return &Manager{
		catalog: catalog,
		matcher: matcher,
		machine: dialogue.NewMachine(catalog),
		store:   store,
		sink:    sink,
		logger:  logger.With("subsystem", "session_manager"),
		nowFunc: time.Now,
	}
}

// StartCall creates a session bound to the given language at the script's
// initial state and emits the greeting as the first agent utterance.
func (m *Manager) StartCall(ctx context.Context, customerName, agentName, language string) (string, event.AgentUtterance, error) {
	if !m.catalog.HasLanguage(language) {
		return "", event.AgentUtterance{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}

	initial := m.catalog.InitialState()
	s := &Session{
		ID:             uuid.NewString(),
		CustomerName:   customerName,
		AgentName:      agentName,
		Language:       language,
		CurrentStateID: initial.ID,
		Collected:      make(map[string]string),
		Retries:        make(map[string]int),
		Status:         StatusActive,
		History:        []string{initial.ID},
		StartedAt:      m.nowFunc(),
	}
	m.store.Create(s)

	s.mu.Lock()
	greeting := m.renderPrompt(s, initial, false)
	entry := m.agentEntry(s, greeting)
	s.mu.Unlock()

	m.appendEntries(ctx, entry)

	m.logger.Info("call started",
		"session_id", s.ID,
		"customer", customerName,
		"agent", agentName,
		"language", language,
	)

	return s.ID, event.AgentUtterance{SessionID: s.ID, StateID: initial.ID, Text: greeting}, nil
}

// HandleMessage processes one customer utterance: the objection matcher
// runs first; on a match the canned rebuttal is emitted and the script
// position is left untouched. Otherwise the dialogue machine advances
// exactly one step. Unknown or ended session ids yield
// ErrSessionNotFound.
func (m *Manager) HandleMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	s, ok := m.store.Lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.mu.Lock()
	if s.Status != StatusActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	m.messagesTotal.Add(1)

	reply, err := m.step(s, text)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.appendEntries(ctx, reply.Entries...)
	if reply.Ended != nil {
		m.notifyEnded(ctx, *reply.Ended)
	}
	return reply, nil
}

// step runs the objection-first processing order for one message. Must be
// called with s.mu held.
func (m *Manager) step(s *Session, text string) (*Reply, error) {
	state, err := m.catalog.State(s.CurrentStateID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}

	score := scoreSentiment(text)
	s.recordSentiment(score)

	// Objections are an overlay, never a graph edge: reply with the
	// canned rebuttal and leave the script position and history alone.
	// The same objection may be raised any number of times; each raise
	// simply re-emits the response.
	if obj, matched := m.matcher.Match(text, s.Language); matched {
		m.objectionsTotal.Add(1)
		m.logger.Debug("objection intercepted",
			"session_id", s.ID,
			"objection", obj.ID,
			"state", s.CurrentStateID,
		)

		rebuttal := obj.Response[s.Language]
		entries := []event.TranscriptEntry{
			m.customerEntry(s, text, "objection:"+obj.ID, score),
			m.agentEntry(s, rebuttal),
		}
		return &Reply{
			Utterance: event.AgentUtterance{SessionID: s.ID, StateID: s.CurrentStateID, Text: rebuttal},
			Entries:   entries,
		}, nil
	}

	res, err := m.machine.Advance(state, s.Collected, text, s.Retries[state.ID])
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}

	if res.Clarify {
		s.Retries[state.ID]++
		clarify := m.renderPrompt(s, state, true)
		entries := []event.TranscriptEntry{
			m.customerEntry(s, text, "unclear", score),
			m.agentEntry(s, clarify),
		}
		return &Reply{
			Utterance: event.AgentUtterance{SessionID: s.ID, StateID: state.ID, Text: clarify},
			Entries:   entries,
		}, nil
	}

	for k, v := range res.FieldUpdates {
		s.Collected[k] = v
	}

	entries := []event.TranscriptEntry{
		m.customerEntry(s, text, "answer", score),
	}

	next, err := m.catalog.State(res.NextStateID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}

	if res.NextStateID != s.CurrentStateID {
		s.CurrentStateID = res.NextStateID
		s.History = append(s.History, res.NextStateID)
	}

	prompt := m.renderPrompt(s, next, false)
	entries = append(entries, m.agentEntry(s, prompt))

	reply := &Reply{
		Utterance: event.AgentUtterance{SessionID: s.ID, StateID: next.ID, Text: prompt},
		Entries:   entries,
	}

	if res.Terminal {
		s.Status = StatusCompleted
		reply.Ended = &event.SessionEnded{
			SessionID:     s.ID,
			Outcome:       event.OutcomeCompleted,
			CollectedData: s.snapshotCollected(),
			Sentiment:     s.averageSentiment(),
			EndedAt:       m.nowFunc(),
		}
		m.logger.Info("call completed", "session_id", s.ID, "states_visited", len(s.History))
	}

	return reply, nil
}

// EndCall forces the session to a terminal state regardless of its
// position. Ending an already terminal session is an idempotent no-op
// that reports the recorded outcome; an unknown id yields
// ErrSessionNotFound.
func (m *Manager) EndCall(ctx context.Context, sessionID string) (string, error) {
	s, ok := m.store.Lookup(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.mu.Lock()
	switch s.Status {
	case StatusCompleted:
		s.mu.Unlock()
		return event.OutcomeCompleted, nil
	case StatusAbandoned:
		s.mu.Unlock()
		return event.OutcomeAbandoned, nil
	}

	s.Status = StatusAbandoned
	s.CurrentStateID = "abandoned"
	s.History = append(s.History, "abandoned")
	ended := event.SessionEnded{
		SessionID:     s.ID,
		Outcome:       event.OutcomeAbandoned,
		CollectedData: s.snapshotCollected(),
		Sentiment:     s.averageSentiment(),
		EndedAt:       m.nowFunc(),
	}
	s.mu.Unlock()

	m.notifyEnded(ctx, ended)
	m.logger.Info("call abandoned", "session_id", sessionID)
	return event.OutcomeAbandoned, nil
}

// MessagesTotal returns the number of customer messages processed.
func (m *Manager) MessagesTotal() uint64 { return m.messagesTotal.Load() }

// ObjectionsTotal returns the number of objections intercepted.
func (m *Manager) ObjectionsTotal() uint64 { return m.objectionsTotal.Load() }

// renderPrompt renders the state's prompt (or clarify variant) in the
// session's language with the session's data. Must be called with s.mu
// held.
func (m *Manager) renderPrompt(s *Session, st *script.State, clarify bool) string {
	template := st.Prompt[s.Language]
	if clarify && st.Clarify[s.Language] != "" {
		template = st.Clarify[s.Language]
	}

	vars := make(map[string]string, len(s.Collected)+2)
	for k, v := range s.Collected {
		vars[k] = v
	}
	vars["customer_name"] = s.CustomerName
	vars["agent_name"] = s.AgentName
	return script.Render(template, vars)
}

// customerEntry builds a transcript entry for the inbound utterance.
// Must be called with s.mu held.
func (m *Manager) customerEntry(s *Session, text, intent string, score *float64) event.TranscriptEntry {
	return event.TranscriptEntry{
		SessionID: s.ID,
		Speaker:   event.SpeakerCustomer,
		Message:   text,
		StateID:   s.CurrentStateID,
		Intent:    intent,
		Sentiment: score,
		Timestamp: s.nextStamp(m.nowFunc()),
	}
}

// agentEntry builds a transcript entry for an agent line. Must be called
// with s.mu held.
func (m *Manager) agentEntry(s *Session, text string) event.TranscriptEntry {
	return event.TranscriptEntry{
		SessionID: s.ID,
		Speaker:   event.SpeakerAgent,
		Message:   text,
		StateID:   s.CurrentStateID,
		Timestamp: s.nextStamp(m.nowFunc()),
	}
}

// appendEntries delivers transcript entries to the sink, logging rather
// than failing the call on sink errors.
func (m *Manager) appendEntries(ctx context.Context, entries ...event.TranscriptEntry) {
	for _, e := range entries {
		if err := m.sink.Append(ctx, e); err != nil {
			m.logger.Error("transcript append failed",
				"session_id", e.SessionID,
				"error", err,
			)
		}
	}
}

// notifyEnded delivers the end-of-session notification to the sink.
func (m *Manager) notifyEnded(ctx context.Context, ended event.SessionEnded) {
	if err := m.sink.Notify(ctx, ended); err != nil {
		m.logger.Error("session ended notify failed",
			"session_id", ended.SessionID,
			"error", err,
		)
	}
}
