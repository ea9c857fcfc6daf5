package dialogue

import (
	"regexp"
	"strings"

	"github.com/rupeeq/callagent/internal/objection"
	"github.com/rupeeq/callagent/internal/script"
)

// numberRe extracts the first run of digits after commas are stripped,
// so "50,000 rupees" parses as 50000.
var numberRe = regexp.MustCompile(`\d+`)

// Affirmative and negative tokens cover both campaign languages; a yes/no
// answer containing tokens from both sets (or neither) is ambiguous and
// triggers a clarify reprompt.
var (
	yesTokens = map[string]bool{
		"yes": true, "yeah": true, "yep": true, "ok": true, "okay": true,
		"sure": true, "correct": true, "right": true, "fine": true,
		"interested": true, "good": true, "great": true, "nice": true,
		"haan": true, "ha": true, "ji": true, "theek": true, "bilkul": true,
	}
	noTokens = map[string]bool{
		"no": true, "nope": true, "not": true, "dont": true, "never": true,
		"nahi": true, "nahin": true, "na": true, "mat": true,
	}
)

// parseInput interprets the customer's utterance according to the state's
// expected input kind. It returns the canonical value to store in the
// session's collected data and whether parsing succeeded.
func parseInput(st *script.State, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)

	switch st.Input {
	case script.InputFreeText:
		if st.Field == "" {
			// Pure acknowledgement states accept anything.
			return trimmed, true
		}
		return trimmed, trimmed != ""

	case script.InputYesNo:
		return parseYesNo(trimmed)

	case script.InputNumeric:
		return parseNumeric(trimmed)

	case script.InputChoice:
		return parseChoice(st.Options, trimmed)

	default:
		return trimmed, true
	}
}

// parseYesNo maps an utterance onto "true"/"false" via token lookup.
func parseYesNo(input string) (string, bool) {
	yes, no := false, false
	for _, tok := range tokens(input) {
		if yesTokens[tok] {
			yes = true
		}
		if noTokens[tok] {
			no = true
		}
	}
	switch {
	case yes && !no:
		return "true", true
	case no && !yes:
		return "false", true
	default:
		return "", false
	}
}

// parseNumeric extracts the first number from the utterance.
func parseNumeric(input string) (string, bool) {
	cleaned := strings.ReplaceAll(input, ",", "")
	n := numberRe.FindString(cleaned)
	return n, n != ""
}

// parseChoice matches the utterance against each option's synonyms and
// returns the canonical option value. The longest matching synonym wins
// so "self-employed" beats "employed".
func parseChoice(options []script.ChoiceOption, input string) (string, bool) {
	norm := objection.Normalize(input)
	if norm == "" {
		return "", false
	}

	best := ""
	bestLen := 0
	for _, opt := range options {
		for _, syn := range opt.Synonyms {
			s := objection.Normalize(syn)
			if s == "" || !containsPhrase(norm, s) {
				continue
			}
			if len(s) > bestLen {
				best = opt.Value
				bestLen = len(s)
			}
		}
	}
	return best, best != ""
}

// containsPhrase reports whether phrase occurs in text on token
// boundaries, so "employed" does not match inside "unemployed".
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		startOK := start == 0 || text[start-1] == ' '
		endOK := end == len(text) || text[end] == ' '
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

// tokens splits an utterance into normalized words.
func tokens(input string) []string {
	return strings.Fields(objection.Normalize(input))
}
