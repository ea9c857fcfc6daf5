package session

import (
	"strings"

	"github.com/rupeeq/callagent/internal/objection"
)

// Small sentiment lexicons covering both campaign languages. The score is
// advisory only — it feeds the per-call average shown on the dashboard —
// so a lexicon lookup is sufficient here.
var (
	positiveWords = map[string]bool{
		"good": true, "great": true, "nice": true, "excellent": true,
		"interested": true, "helpful": true, "thanks": true, "thank": true,
		"perfect": true, "wonderful": true, "yes": true, "sure": true,
		"accha": true, "badhiya": true, "shukriya": true, "dhanyavaad": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "waste": true, "annoying": true, "stop": true,
		"angry": true, "useless": true, "scam": true, "fraud": true,
		"terrible": true, "no": true, "never": true,
		"bakwas": true, "bekaar": true, "ganda": true,
	}
)

// scoreSentiment returns a score in [-1, 1] from the balance of positive
// and negative words in the utterance, or nil when the lexicons match
// nothing — absent is more honest than a fabricated neutral.
func scoreSentiment(text string) *float64 {
	pos, neg := 0, 0
	for _, tok := range splitTokens(text) {
		if positiveWords[tok] {
			pos++
		}
		if negativeWords[tok] {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return nil
	}
	score := float64(pos-neg) / float64(total)
	return &score
}

func splitTokens(text string) []string {
	return strings.Fields(objection.Normalize(text))
}
