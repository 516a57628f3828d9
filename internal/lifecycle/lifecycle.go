package lifecycle

import (
	"strings"
	"unicode/utf8"

	"github.com/nvoskov/outreach-bot/internal/models"
)

// Default lexicons. Substring match, case-insensitive. These are a
// best-effort heuristic, not a sentiment engine; the lists are
// configurable so a model-based classifier can replace them later.
var (
	DefaultRejectionPhrases = []string{
		"нет", "неинтересно", "не интересует", "не пиши", "отстань",
		"не надо", "удали", "блок", "спам", "не беспокой",
	}
	DefaultInterestKeywords = []string{
		"встреча", "записаться", "консультация",
	}
)

// DefaultEngagedThreshold is the minimum message length (in runes)
// treated as a proxy for engagement depth.
const DefaultEngagedThreshold = 50

// Classifier derives the next lifecycle status of a client from the
// text of an inbound message.
type Classifier struct {
	rejectionPhrases []string
	interestKeywords []string
	engagedThreshold int
}

func New(rejectionPhrases, interestKeywords []string, engagedThreshold int) *Classifier {
	if len(rejectionPhrases) == 0 {
		rejectionPhrases = DefaultRejectionPhrases
	}
	if len(interestKeywords) == 0 {
		interestKeywords = DefaultInterestKeywords
	}
	if engagedThreshold <= 0 {
		engagedThreshold = DefaultEngagedThreshold
	}
	return &Classifier{
		rejectionPhrases: lowered(rejectionPhrases),
		interestKeywords: lowered(interestKeywords),
		engagedThreshold: engagedThreshold,
	}
}

// Next returns the status the client should hold after receiving text.
// A rejected client stays rejected regardless of later messages.
func (c *Classifier) Next(current models.ClientStatus, text string) models.ClientStatus {
	if current == models.StatusRejected {
		return models.StatusRejected
	}

	lower := strings.ToLower(text)

	if containsAny(lower, c.rejectionPhrases) {
		return models.StatusRejected
	}
	if containsAny(lower, c.interestKeywords) {
		return models.StatusInterested
	}
	if utf8.RuneCountInString(text) > c.engagedThreshold {
		return models.StatusEngaged
	}
	if current == models.StatusNew {
		return models.StatusContacted
	}
	return current
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func lowered(phrases []string) []string {
	out := make([]string, len(phrases))
	for i, phrase := range phrases {
		out[i] = strings.ToLower(phrase)
	}
	return out
}
