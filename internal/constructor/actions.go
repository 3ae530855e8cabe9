package constructor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
)

// The closed action vocabulary. Control flow never trusts free-form
// model output: anything outside this set is replaced by a deterministic
// choice derived from state.
const (
	ActionCollectInfo       = "collect_info"
	ActionRequestFiles      = "request_files"
	ActionDispatchIngestion = "dispatch_ingestion"
	ActionDispatchStructure = "dispatch_structure"
	ActionDispatchQuiz      = "dispatch_quiz"
	ActionDispatchValidate  = "dispatch_validation"
	ActionFinalize          = "finalize"
	ActionRespond           = "respond"
)

var validActions = map[string]bool{
	ActionCollectInfo:       true,
	ActionRequestFiles:      true,
	ActionDispatchIngestion: true,
	ActionDispatchStructure: true,
	ActionDispatchQuiz:      true,
	ActionDispatchValidate:  true,
	ActionFinalize:          true,
	ActionRespond:           true,
}

const routePrompt = `You coordinate course construction. Given the conversation and the
course state, reply with exactly one action name and nothing else:
collect_info, request_files, dispatch_ingestion, dispatch_structure,
dispatch_quiz, dispatch_validation, finalize, respond.`

// routeAction selects the turn's action. The model's answer is validated
// against the closed set; out-of-vocabulary answers fall back to a pure
// function of state.
func (c *Coordinator) routeAction(ctx context.Context) string {
	if c.deps.LLM != nil {
		resp, err := c.deps.LLM.Complete(ctx, llm.Request{
			System:   routePrompt + "\n\nState: " + c.stateSummary(),
			Messages: tail(c.state.Messages, 6),
		})
		if err == nil {
			action := strings.ToLower(strings.TrimSpace(resp.Content))
			if validActions[action] {
				return action
			}
			slog.Debug("router returned out-of-vocabulary action",
				"session_id", c.state.SessionID, "action", action)
		}
	}
	return defaultAction(&c.state)
}

// defaultAction derives the next action purely from current state. This
// keeps routing correct even with an unreliable decision step.
func defaultAction(s *State) string {
	switch {
	case len(s.UnprocessedFiles()) > 0:
		return ActionDispatchIngestion
	case len(s.ContentChunks) > 0 && len(s.Topics) == 0:
		return ActionDispatchStructure
	case len(s.Topics) > 0 && len(s.QuizQuestions) == 0:
		return ActionDispatchQuiz
	case len(s.QuizQuestions) > 0 && !s.Validated:
		return ActionDispatchValidate
	case s.Validated && s.ValidationPassed && !s.Published:
		return ActionFinalize
	case !s.HasCourseInfo():
		return ActionCollectInfo
	case len(s.UploadedFiles) == 0:
		return ActionRequestFiles
	default:
		return ActionRespond
	}
}

func (c *Coordinator) stateSummary() string {
	var b strings.Builder
	b.WriteString("phase=" + c.state.Phase)
	b.WriteString(" title=" + c.state.CourseInfo.Title)
	writeCount(&b, " files", len(c.state.UploadedFiles))
	writeCount(&b, " unprocessed", len(c.state.UnprocessedFiles()))
	writeCount(&b, " chunks", len(c.state.ContentChunks))
	writeCount(&b, " topics", len(c.state.Topics))
	writeCount(&b, " questions", len(c.state.QuizQuestions))
	if c.state.Validated {
		if c.state.ValidationPassed {
			b.WriteString(" validation=passed")
		} else {
			b.WriteString(" validation=failed")
		}
	}
	return b.String()
}

func writeCount(b *strings.Builder, label string, n int) {
	b.WriteString(label)
	b.WriteString("=")
	b.WriteString(strconv.Itoa(n))
}

func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
