package tutor

import (
	"strings"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// Teaching stances.
const (
	StanceSupportive  = "supportive"
	StanceChallenging = "challenging"
	StanceEngaging    = "engaging"
	StanceReassuring  = "reassuring"
	StanceBalanced    = "balanced"
)

var frustrationWords = []string{"frustrat", "give up", "hate", "impossible", "annoy", "angry"}
var negativeWords = []string{"don't get", "dont get", "confus", "lost", "hard", "difficult", "stuck"}
var positiveWords = []string{"great", "easy", "love", "fun", "got it", "makes sense", "cool"}

// selectStance picks a teaching stance from topic mastery and the
// sentiment and engagement read off the last few student messages.
func selectStance(mastery float64, history []domain.Message) string {
	sentiment, engagement := readSignals(history)

	switch {
	case sentiment == "frustrated":
		return StanceReassuring
	case mastery < 0.4 || sentiment == "negative":
		return StanceSupportive
	case mastery > 0.7 && sentiment == "positive":
		return StanceChallenging
	case engagement == "low":
		return StanceEngaging
	default:
		return StanceBalanced
	}
}

// readSignals classifies sentiment and engagement from the student's
// recent messages. Engagement is low when replies are consistently
// terse.
func readSignals(history []domain.Message) (sentiment, engagement string) {
	var recent []string
	for i := len(history) - 1; i >= 0 && len(recent) < 3; i-- {
		if history[i].Role == domain.RoleUser {
			recent = append(recent, strings.ToLower(history[i].Content))
		}
	}
	if len(recent) == 0 {
		return "neutral", "normal"
	}

	joined := strings.Join(recent, " ")
	sentiment = "neutral"
	switch {
	case containsAny(joined, frustrationWords):
		sentiment = "frustrated"
	case containsAny(joined, negativeWords):
		sentiment = "negative"
	case containsAny(joined, positiveWords):
		sentiment = "positive"
	}

	short := 0
	for _, m := range recent {
		if len(strings.Fields(m)) <= 2 {
			short++
		}
	}
	engagement = "normal"
	if short == len(recent) && len(recent) >= 2 {
		engagement = "low"
	}
	return sentiment, engagement
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
