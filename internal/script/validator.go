package script

import (
	"errors"
	"fmt"
)

// ValidationSeverity indicates the severity of a validation issue.
type ValidationSeverity string

const (
	// SeverityError indicates a problem that prevents the script from loading.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates a potential issue that may cause unexpected behavior.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue describes a single problem found during script validation.
type ValidationIssue struct {
	Severity ValidationSeverity `json:"severity"`
	StateID  string             `json:"state_id,omitempty"`
	Message  string             `json:"message"`
}

// ValidationResult holds the outcome of validating a script document.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

func (r *ValidationResult) addError(stateID, msg string) {
	r.Valid = false
	r.Issues = append(r.Issues, ValidationIssue{Severity: SeverityError, StateID: stateID, Message: msg})
}

func (r *ValidationResult) addWarning(stateID, msg string) {
	r.Issues = append(r.Issues, ValidationIssue{Severity: SeverityWarning, StateID: stateID, Message: msg})
}

// Err collapses all error-severity issues into a single error, or nil.
func (r *ValidationResult) Err() error {
	var errs []error
	for _, issue := range r.Issues {
		if issue.Severity != SeverityError {
			continue
		}
		if issue.StateID != "" {
			errs = append(errs, fmt.Errorf("state %s: %s", issue.StateID, issue.Message))
		} else {
			errs = append(errs, errors.New(issue.Message))
		}
	}
	return errors.Join(errs...)
}

// Validate checks a parsed script document for structural and referential
// integrity. A boot-time failure here must abort process startup; it is
// never surfaced as a per-call error. Checked:
//   - at least one supported language, exactly one existing initial state
//   - at least one terminal state
//   - every next/default/branch target exists
//   - every state has a prompt for every supported language
//   - required-field states carry a clarify variant for every language
//   - choice states declare options; non-choice states don't
//   - branch fields refer to a field some state collects
func Validate(doc *Document) *ValidationResult {
	result := &ValidationResult{Valid: true, Issues: []ValidationIssue{}}

	if len(doc.Languages) == 0 {
		result.addError("", "script declares no languages")
	}
	if len(doc.States) == 0 {
		result.addError("", "script has no states")
		return result
	}

	states := make(map[string]*State, len(doc.States))
	collected := make(map[string]bool)
	for i := range doc.States {
		st := &doc.States[i]
		if st.ID == "" {
			result.addError("", fmt.Sprintf("state at index %d has no id", i))
			continue
		}
		if _, dup := states[st.ID]; dup {
			result.addError(st.ID, "duplicate state id")
			continue
		}
		states[st.ID] = st
		if st.Field != "" {
			collected[st.Field] = true
		}
	}

	if doc.Initial == "" {
		result.addError("", "script declares no initial state")
	} else if st, ok := states[doc.Initial]; !ok {
		result.addError("", fmt.Sprintf("initial state %q not found", doc.Initial))
	} else if st.Terminal {
		result.addError(doc.Initial, "initial state must not be terminal")
	}

	hasTerminal := false
	hasIncoming := make(map[string]bool)

	checkTarget := func(from, kind, target string) {
		if target == "" {
			return
		}
		if _, ok := states[target]; !ok {
			result.addError(from, fmt.Sprintf("%s edge references unknown state %q", kind, target))
			return
		}
		hasIncoming[target] = true
	}

	for _, st := range doc.States {
		if st.Terminal {
			hasTerminal = true
		}

		// Language coverage for prompts and clarify variants.
		for _, lang := range doc.Languages {
			if st.Prompt[lang] == "" {
				result.addError(st.ID, fmt.Sprintf("missing %q prompt", lang))
			}
			if st.Field != "" && !st.Terminal && st.Clarify[lang] == "" {
				result.addError(st.ID, fmt.Sprintf("required-field state missing %q clarify variant", lang))
			}
		}

		// Edge targets.
		checkTarget(st.ID, "next", st.Next)
		checkTarget(st.ID, "default", st.Default)
		for _, b := range st.Branches {
			checkTarget(st.ID, "branch", b.Next)
			if b.Field == "" || b.Next == "" {
				result.addError(st.ID, "branch must declare both field and next")
			} else if !collected[b.Field] {
				result.addWarning(st.ID, fmt.Sprintf("branch keys on field %q that no state collects", b.Field))
			}
		}

		// Input shape coherence.
		switch st.Input {
		case InputFreeText, InputYesNo, InputNumeric:
			if len(st.Options) > 0 {
				result.addWarning(st.ID, "options are only used by choice states")
			}
		case InputChoice:
			if len(st.Options) == 0 {
				result.addError(st.ID, "choice state declares no options")
			}
		case "":
			if !st.Terminal {
				result.addError(st.ID, "state declares no input kind")
			}
		default:
			result.addError(st.ID, fmt.Sprintf("unknown input kind %q", st.Input))
		}

		// Non-terminal states need somewhere to go.
		if !st.Terminal && st.Next == "" && len(st.Branches) == 0 {
			result.addError(st.ID, "non-terminal state has no outgoing edge")
		}
		if st.Terminal && (st.Next != "" || len(st.Branches) > 0) {
			result.addWarning(st.ID, "terminal state declares outgoing edges (ignored)")
		}
	}

	if !hasTerminal {
		result.addError("", "script has no terminal state")
	}

	// Disconnected states: never targeted, not initial, not terminal.
	// Terminal states may be entered by the engine directly (end-call),
	// so a terminal state without incoming edges is expected.
	for _, st := range doc.States {
		if st.ID != doc.Initial && !st.Terminal && !hasIncoming[st.ID] {
			result.addWarning(st.ID, "state has no incoming edges (unreachable)")
		}
	}

	return result
}
