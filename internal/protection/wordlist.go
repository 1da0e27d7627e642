package protection

import (
	"context"
	"strings"
)

// phrase is one weighted manipulation indicator.
type phrase struct {
	text   string
	weight float64
}

// defaultPhrases are common prompt-manipulation markers. The score of a
// scan is the highest weight among matched phrases; multiple distinct
// matches add a small escalation on top, capped at 1.0.
var defaultPhrases = []phrase{
	{"ignore previous instructions", 0.9},
	{"ignore all previous instructions", 0.9},
	{"disregard your instructions", 0.9},
	{"disregard all prior", 0.85},
	{"new instructions:", 0.7},
	{"system prompt", 0.6},
	{"you are now", 0.5},
	{"do not tell the user", 0.8},
	{"without telling the user", 0.8},
	{"forward this email to", 0.6},
	{"send your credentials", 0.9},
	{"reveal your", 0.6},
	{"this is your developer", 0.7},
	{"override your safety", 0.9},
	{"pretend to be", 0.5},
	{"act as if", 0.4},
	{"base64 decode", 0.5},
	{"urgent: immediate action required", 0.4},
}

// escalationStep is added per additional matched phrase beyond the first.
const escalationStep = 0.05

// WordlistScanner is an offline heuristic scanner. It is the default
// collaborator when no LLM classifier is configured, and the stand-in
// used by tests: deterministic, no network, no state.
type WordlistScanner struct {
	phrases []phrase
}

// NewWordlistScanner returns a scanner over the built-in phrase list.
func NewWordlistScanner() *WordlistScanner {
	return &WordlistScanner{phrases: defaultPhrases}
}

// NewWordlistScannerWith returns a scanner over a custom phrase list,
// given as text → weight.
func NewWordlistScannerWith(weights map[string]float64) *WordlistScanner {
	phrases := make([]phrase, 0, len(weights))
	for text, w := range weights {
		phrases = append(phrases, phrase{text: strings.ToLower(text), weight: w})
	}
	return &WordlistScanner{phrases: phrases}
}

// Scan scores content by case-insensitive phrase search.
func (s *WordlistScanner) Scan(ctx context.Context, content string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lower := strings.ToLower(content)
	score := 0.0
	matches := 0
	for _, p := range s.phrases {
		if strings.Contains(lower, p.text) {
			matches++
			if p.weight > score {
				score = p.weight
			}
		}
	}
	if matches > 1 {
		score += float64(matches-1) * escalationStep
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, nil
}
