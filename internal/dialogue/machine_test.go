package dialogue

import (
	"strings"
	"testing"

	"github.com/rupeeq/callagent/internal/script"
)

const testBundle = `
languages: [en]
initial: intro
states:
  - id: intro
    input: free_text
    next: employment
    prompt:
      en: "Hello."
  - id: employment
    input: choice
    field: employment
    retry_limit: 2
    next: consent
    default: consent
    branches:
      - field: employment
        equals: salaried
        next: salary
    options:
      - value: salaried
        synonyms: [job, employed, salaried, naukri]
      - value: business
        synonyms: [business, self-employed, shop]
    prompt:
      en: "Job or business?"
    clarify:
      en: "Please say job or business."
  - id: salary
    input: numeric
    field: salary
    next: consent
    prompt:
      en: "Salary?"
    clarify:
      en: "A number, please."
  - id: consent
    input: yes_no
    field: consent
    next: done
    branches:
      - field: consent
        equals: "false"
        next: done
    prompt:
      en: "May I proceed?"
    clarify:
      en: "Yes or no?"
  - id: done
    input: free_text
    terminal: true
    prompt:
      en: "Bye."
`

func newTestMachine(t *testing.T) (*Machine, *script.Catalog) {
	t.Helper()
	cat, err := script.LoadFromReader(strings.NewReader(testBundle))
	if err != nil {
		t.Fatalf("loading bundle: %v", err)
	}
	return NewMachine(cat), cat
}

func state(t *testing.T, cat *script.Catalog, id string) *script.State {
	t.Helper()
	st, err := cat.State(id)
	if err != nil {
		t.Fatalf("state %s: %v", id, err)
	}
	return st
}

func TestAdvanceFreeText(t *testing.T) {
	m, cat := newTestMachine(t)

	res, err := m.Advance(state(t, cat, "intro"), nil, "hello there", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.NextStateID != "employment" || res.Clarify || res.Terminal {
		t.Errorf("res = %+v, want transition to employment", res)
	}
	if res.FieldUpdates != nil {
		t.Errorf("fieldless state recorded updates: %v", res.FieldUpdates)
	}
}

func TestAdvanceChoiceBranch(t *testing.T) {
	m, cat := newTestMachine(t)
	st := state(t, cat, "employment")

	tests := []struct {
		name     string
		input    string
		wantNext string
		wantVal  string
	}{
		{"salaried takes branch", "I do a job in Pune", "salary", "salaried"},
		{"hindi synonym", "meri naukri hai", "salary", "salaried"},
		{"business takes linear edge", "I run a shop", "consent", "business"},
		{"longest synonym wins", "I am self-employed", "consent", "business"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Advance(st, nil, tt.input, 0)
			if err != nil {
				t.Fatal(err)
			}
			if res.NextStateID != tt.wantNext {
				t.Errorf("next = %q, want %q", res.NextStateID, tt.wantNext)
			}
			if res.FieldUpdates["employment"] != tt.wantVal {
				t.Errorf("employment = %q, want %q", res.FieldUpdates["employment"], tt.wantVal)
			}
		})
	}
}

func TestAdvanceClarifyLoopBounded(t *testing.T) {
	m, cat := newTestMachine(t)
	st := state(t, cat, "employment")

	// Unparseable input reprompts while retries remain.
	for retries := 0; retries < st.Retries(); retries++ {
		res, err := m.Advance(st, nil, "the weather is cloudy", retries)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Clarify || res.NextStateID != "employment" {
			t.Fatalf("retries=%d: res = %+v, want clarify reprompt", retries, res)
		}
	}

	// Bound exhausted: default edge, no field recorded.
	res, err := m.Advance(st, nil, "the weather is cloudy", st.Retries())
	if err != nil {
		t.Fatal(err)
	}
	if res.Clarify {
		t.Fatal("clarify loop not bounded")
	}
	if res.NextStateID != "consent" {
		t.Errorf("next = %q, want default edge consent", res.NextStateID)
	}
	if res.FieldUpdates != nil {
		t.Errorf("default edge recorded updates: %v", res.FieldUpdates)
	}
}

func TestAdvanceNumeric(t *testing.T) {
	m, cat := newTestMachine(t)
	st := state(t, cat, "salary")

	res, err := m.Advance(st, nil, "around 45,000 per month", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.FieldUpdates["salary"] != "45000" {
		t.Errorf("salary = %q, want 45000", res.FieldUpdates["salary"])
	}
	if res.NextStateID != "consent" {
		t.Errorf("next = %q, want consent", res.NextStateID)
	}

	res, err = m.Advance(st, nil, "a decent amount", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Clarify {
		t.Error("non-numeric answer must clarify")
	}
}

func TestAdvanceYesNo(t *testing.T) {
	m, cat := newTestMachine(t)
	st := state(t, cat, "consent")

	tests := []struct {
		name     string
		input    string
		wantNext string
		wantVal  string
		clarify  bool
	}{
		{"yes", "yes, go ahead", "done", "true", false},
		{"hindi yes", "haan bilkul", "done", "true", false},
		{"no takes branch", "nahi, mat karo", "done", "false", false},
		{"mixed is ambiguous", "yes no maybe", "", "", true},
		{"neither is ambiguous", "what do you mean", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Advance(st, nil, tt.input, 0)
			if err != nil {
				t.Fatal(err)
			}
			if res.Clarify != tt.clarify {
				t.Fatalf("clarify = %v, want %v", res.Clarify, tt.clarify)
			}
			if tt.clarify {
				return
			}
			if res.NextStateID != tt.wantNext {
				t.Errorf("next = %q, want %q", res.NextStateID, tt.wantNext)
			}
			if res.FieldUpdates["consent"] != tt.wantVal {
				t.Errorf("consent = %q, want %q", res.FieldUpdates["consent"], tt.wantVal)
			}
			if res.Terminal != true {
				t.Error("transition into done must be terminal")
			}
		})
	}
}

func TestAdvanceBranchOnPreviouslyCollected(t *testing.T) {
	m, cat := newTestMachine(t)
	st := state(t, cat, "employment")

	// The branch must prefer this step's parse over stale collected data.
	collected := map[string]string{"employment": "business"}
	res, err := m.Advance(st, collected, "salaried", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.NextStateID != "salary" {
		t.Errorf("next = %q, want salary (fresh value wins)", res.NextStateID)
	}
}

func TestAdvanceTerminalState(t *testing.T) {
	m, cat := newTestMachine(t)

	res, err := m.Advance(state(t, cat, "done"), nil, "anything", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Terminal || res.NextStateID != "done" {
		t.Errorf("res = %+v, want terminal self-state", res)
	}
}
