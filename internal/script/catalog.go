// Package script holds the validated, immutable call script: every state
// of the outbound conversation with its per-language prompts, expected
// input shape, and declarative transition rule. The catalog is built once
// at process start and never mutated afterwards, so concurrent sessions
// may share it freely.
package script

import "errors"

// InputKind describes the shape of customer input a state expects.
type InputKind string

const (
	// InputFreeText accepts any non-empty utterance.
	InputFreeText InputKind = "free_text"
	// InputYesNo expects an affirmative or negative answer.
	InputYesNo InputKind = "yes_no"
	// InputNumeric expects an amount; the first number in the utterance wins.
	InputNumeric InputKind = "numeric"
	// InputChoice expects one of a fixed set of options matched by synonym.
	InputChoice InputKind = "choice"
)

// DefaultRetryLimit bounds the clarify loop when a state's definition does
// not override it. After this many reprompts the default edge is taken.
const DefaultRetryLimit = 2

// ErrStateNotFound is returned when a state id is not part of the catalog.
var ErrStateNotFound = errors.New("state not found in catalog")

// ChoiceOption is one admissible value for an InputChoice state, together
// with the customer phrasings that map to it.
type ChoiceOption struct {
	Value    string   `yaml:"value"`
	Synonyms []string `yaml:"synonyms"`
}

// Branch is a conditional edge: when the named collected field equals the
// given value, the transition goes to Next. Branches are evaluated in
// definition order; the first match wins.
type Branch struct {
	Field  string `yaml:"field"`
	Equals string `yaml:"equals"`
	Next   string `yaml:"next"`
}

// State is one step of the call script.
type State struct {
	// ID is the unique state identifier, e.g. "employmentStatus".
	ID string `yaml:"id"`

	// Prompt maps language code to the prompt template spoken on entry.
	// Templates may reference {customer_name}, {agent_name} and any
	// collected field such as {salary}.
	Prompt map[string]string `yaml:"prompt"`

	// Clarify maps language code to the reprompt used when the customer's
	// answer could not be parsed. Required for states with a Field.
	Clarify map[string]string `yaml:"clarify,omitempty"`

	// Input is the expected input kind for this state.
	Input InputKind `yaml:"input"`

	// Field names the customer attribute this state populates, or "".
	Field string `yaml:"field,omitempty"`

	// Options lists the admissible values for InputChoice states.
	Options []ChoiceOption `yaml:"options,omitempty"`

	// Branches are conditional edges keyed on collected data.
	Branches []Branch `yaml:"branches,omitempty"`

	// Next is the unconditional edge taken when no branch matches.
	Next string `yaml:"next,omitempty"`

	// Default is the edge taken when the retry limit is exhausted.
	// Falls back to Next when empty.
	Default string `yaml:"default,omitempty"`

	// RetryLimit overrides DefaultRetryLimit for this state when > 0.
	RetryLimit int `yaml:"retry_limit,omitempty"`

	// Terminal marks a state that ends the session on entry.
	Terminal bool `yaml:"terminal,omitempty"`
}

// Retries returns the effective retry bound for the state.
func (s *State) Retries() int {
	if s.RetryLimit > 0 {
		return s.RetryLimit
	}
	return DefaultRetryLimit
}

// DefaultEdge returns the target taken when retries are exhausted.
func (s *State) DefaultEdge() string {
	if s.Default != "" {
		return s.Default
	}
	return s.Next
}

// Catalog is the read-only registry of script states.
type Catalog struct {
	languages []string
	initial   string
	states    map[string]*State
	order     []string
}

// State returns the state with the given id.
func (c *Catalog) State(id string) (*State, error) {
	st, ok := c.states[id]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st, nil
}

// InitialState returns the state every session starts in.
func (c *Catalog) InitialState() *State {
	return c.states[c.initial]
}

// Languages returns the language codes every prompt must be defined for.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.languages))
	copy(out, c.languages)
	return out
}

// HasLanguage reports whether the catalog carries prompts for lang.
func (c *Catalog) HasLanguage(lang string) bool {
	for _, l := range c.languages {
		if l == lang {
			return true
		}
	}
	return false
}

// StateIDs returns all state ids in definition order.
func (c *Catalog) StateIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
