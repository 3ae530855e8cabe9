package tutor

import (
	"context"
	"strconv"
	"strings"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
	"github.com/mamounyosef/agentic-tutor/internal/stream"
)

var validActions = map[string]bool{
	actionTeach:       true,
	actionClarify:     true,
	actionReview:      true,
	actionGapAnalysis: true,
	actionQuiz:        true,
	actionSummarize:   true,
}

const routePrompt = `You route a tutoring session. Given the student's latest message
and the session state, reply with exactly one word from this list and
nothing else: teach, clarify, review, gap_analysis, quiz, summarize.`

// routeAction decides what this turn does. Grading takes absolute
// precedence while an answer is pending; explicit keyword intents come
// next; the LLM gets a constrained vote after that; and a deterministic
// default always exists.
func (c *Coordinator) routeAction(ctx context.Context, in stream.Input) string {
	s := c.state
	if s.AwaitingQuizAnswer {
		return actionGradeQuiz
	}
	if action, ok := keywordIntent(in.Text()); ok {
		return action
	}
	if c.deps.LLM != nil {
		resp, err := c.deps.LLM.Complete(ctx, llm.Request{
			System: routePrompt,
			Messages: append(tail(s.Messages, 6), domain.Message{
				Role:    domain.RoleUser,
				Content: "Session state: " + c.stateSummary(),
			}),
			Temperature: 0,
			MaxTokens:   8,
		})
		if err == nil {
			action := strings.ToLower(strings.TrimSpace(resp.Content))
			if validActions[action] {
				return action
			}
			c.deps.Log.Warn("router returned unknown action, using default",
				"session_id", s.SessionID, "action", action)
		}
	}
	return c.defaultAction()
}

// keywordIntent maps unambiguous phrasings straight to an action so
// common requests never depend on the model.
func keywordIntent(text string) (string, bool) {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, []string{"quiz", "test me", "practice question"}):
		return actionQuiz, true
	case containsAny(t, []string{"help", "stuck", "confused", "don't understand", "dont understand"}):
		return actionClarify, true
	case containsAny(t, []string{"review", "go over again", "recap"}):
		return actionReview, true
	case containsAny(t, []string{"gap", "weak", "what should i improve", "where am i struggling"}):
		return actionGapAnalysis, true
	case containsAny(t, []string{"bye", "goodbye", "i'm done", "im done", "finish", "wrap up"}):
		return actionSummarize, true
	}
	return "", false
}

func (c *Coordinator) defaultAction() string {
	s := c.state
	switch {
	case len(s.WeakTopics) > 0 && len(s.Gaps) == 0:
		return actionGapAnalysis
	case len(s.DueReview) > 0:
		return actionReview
	default:
		return actionTeach
	}
}

func (c *Coordinator) stateSummary() string {
	s := c.state
	var b strings.Builder
	b.WriteString("phase=")
	b.WriteString(s.Phase)
	writeCount(&b, " weak topics", len(s.WeakTopics))
	writeCount(&b, " topics due for review", len(s.DueReview))
	writeCount(&b, " interactions", s.Interactions)
	if s.QuizCompleted {
		b.WriteString(", quiz completed")
	}
	return b.String()
}

func writeCount(b *strings.Builder, label string, n int) {
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(n))
	b.WriteString(label)
}

func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
