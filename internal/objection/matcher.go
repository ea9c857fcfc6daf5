// Package objection classifies free-text customer utterances against the
// known objection patterns of the campaign. Matching is advisory: the
// matcher never touches session state — the session manager decides what
// to do with a match. Objections are an overlay on the script, never a
// graph edge, so handling one does not advance the conversation.
package objection

import (
	"strings"
	"unicode"
)

// Objection is a recognized customer pushback with a canned rebuttal.
// Lower Priority values win when several objections match one utterance.
type Objection struct {
	ID       string              `yaml:"id"`
	Priority int                 `yaml:"priority"`
	Patterns map[string][]string `yaml:"patterns"`
	Response map[string]string   `yaml:"response"`
}

// Matcher tests utterances against an immutable objection set.
// Safe for concurrent use: it holds no mutable state.
type Matcher struct {
	objections []Objection
}

// NewMatcher builds a matcher over the given objection set. Patterns are
// normalized once here so Match only normalizes the utterance.
func NewMatcher(objections []Objection) *Matcher {
	normalized := make([]Objection, len(objections))
	for i, o := range objections {
		n := o
		n.Patterns = make(map[string][]string, len(o.Patterns))
		for lang, pats := range o.Patterns {
			norm := make([]string, len(pats))
			for j, p := range pats {
				norm[j] = Normalize(p)
			}
			n.Patterns[lang] = norm
		}
		normalized[i] = n
	}
	return &Matcher{objections: normalized}
}

// Match classifies the utterance against the objection set for the given
// language. On multiple matches the lowest priority wins; ties are broken
// by the longest matched pattern (most specific). Returns false when
// nothing matches.
func (m *Matcher) Match(utterance, language string) (*Objection, bool) {
	norm := Normalize(utterance)
	if norm == "" {
		return nil, false
	}

	var (
		best    *Objection
		bestLen int
	)
	for i := range m.objections {
		o := &m.objections[i]
		matched := longestMatch(norm, o.Patterns[language])
		if matched == 0 {
			continue
		}
		if best == nil || o.Priority < best.Priority ||
			(o.Priority == best.Priority && matched > bestLen) {
			best = o
			bestLen = matched
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// longestMatch returns the length of the longest pattern contained in the
// normalized utterance, or 0 when none match.
func longestMatch(utterance string, patterns []string) int {
	longest := 0
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(utterance, p) && len(p) > longest {
			longest = len(p)
		}
	}
	return longest
}

// Normalize case-folds the text, drops punctuation ("don't" becomes
// "dont"), and collapses runs of whitespace so pattern matching is
// insensitive to phrasing noise.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
