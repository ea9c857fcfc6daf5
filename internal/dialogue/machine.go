// Package dialogue implements the script-driven transition function of the
// conversation engine. Advance is pure: it never mutates the session — the
// session manager applies the returned field updates and state change.
package dialogue

import (
	"fmt"

	"github.com/rupeeq/callagent/internal/script"
)

// Result is the outcome of one FSM step.
type Result struct {
	// NextStateID is the state the session should move to. When Clarify
	// is set this is the current state (reprompt, no transition).
	NextStateID string

	// FieldUpdates holds collected customer attributes to merge into the
	// session's data, keyed by field name.
	FieldUpdates map[string]string

	// Terminal is true when NextStateID ends the session.
	Terminal bool

	// Clarify is true when the input could not be parsed into the
	// expected kind and the state should reprompt with its clarify
	// variant. The caller increments the per-state retry count.
	Clarify bool
}

// Machine advances sessions through the script graph.
type Machine struct {
	catalog *script.Catalog
}

// NewMachine creates a Machine over the given catalog.
func NewMachine(catalog *script.Catalog) *Machine {
	return &Machine{catalog: catalog}
}

// Advance computes the next step for a session sitting in state st with
// the given collected data, customer input, and the number of clarify
// retries already spent in st.
//
// Parse failure repeats the state with Clarify set until the retry bound
// is exhausted, then falls through the state's default edge without a
// field update — the clarify loop is always bounded. On success the
// field (if any) is recorded and the first matching conditional branch
// is taken, falling back to the linear edge.
func (m *Machine) Advance(st *script.State, collected map[string]string, input string, retries int) (Result, error) {
	if st.Terminal {
		return Result{NextStateID: st.ID, Terminal: true}, nil
	}

	value, ok := parseInput(st, input)
	if !ok {
		if retries < st.Retries() {
			return Result{NextStateID: st.ID, Clarify: true}, nil
		}
		// Retry bound exhausted: take the default edge rather than loop.
		return m.resolve(st, st.DefaultEdge(), nil)
	}

	var updates map[string]string
	if st.Field != "" {
		updates = map[string]string{st.Field: value}
	}

	next := st.Next
	for _, b := range st.Branches {
		if fieldValue(b.Field, updates, collected) == b.Equals {
			next = b.Next
			break
		}
	}

	return m.resolve(st, next, updates)
}

// resolve validates the transition target and fills in terminality.
func (m *Machine) resolve(st *script.State, next string, updates map[string]string) (Result, error) {
	target, err := m.catalog.State(next)
	if err != nil {
		// Catalog validation makes this unreachable; guard anyway.
		return Result{}, fmt.Errorf("state %s: transition to %q: %w", st.ID, next, err)
	}
	return Result{
		NextStateID:  target.ID,
		FieldUpdates: updates,
		Terminal:     target.Terminal,
	}, nil
}

// fieldValue reads a field preferring updates from this step over
// previously collected data.
func fieldValue(field string, updates, collected map[string]string) string {
	if v, ok := updates[field]; ok {
		return v
	}
	return collected[field]
}
