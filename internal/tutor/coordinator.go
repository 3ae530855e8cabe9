// Package tutor implements the tutoring coordinator: a per-session state
// machine that teaches, quizzes, and tracks a student's mastery across a
// course's topic graph.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
	"github.com/mamounyosef/agentic-tutor/internal/session"
	"github.com/mamounyosef/agentic-tutor/internal/store"
	"github.com/mamounyosef/agentic-tutor/internal/stream"
	"github.com/mamounyosef/agentic-tutor/internal/vector"
)

// quizLength caps how many questions a single quiz round presents.
const quizLength = 5

// Deps are the collaborators a tutor coordinator needs. LLM and Vector
// may be nil; every decision then takes the deterministic path and
// explanations go ungrounded.
type Deps struct {
	LLM    llm.Client
	Repo   store.Repository
	Vector *vector.Store
	Log    *slog.Logger
}

// Coordinator drives one tutoring session. Not safe for concurrent
// turns; the session manager serializes access.
type Coordinator struct {
	state State
	deps  Deps

	// topics is the course topic graph, loaded once per process
	// lifetime of the coordinator.
	topics       []domain.Topic
	topicsLoaded bool
}

// New creates a coordinator for a brand-new session.
func New(sessionID, studentID, courseID string, deps Deps) *Coordinator {
	c := &Coordinator{
		state: State{
			SessionID: sessionID,
			StudentID: studentID,
			CourseID:  courseID,
			Mastery:   make(map[string]float64),
			Streaks:   make(map[string]int),
			LastSeen:  make(map[string]time.Time),
		},
		deps: deps,
	}
	c.init()
	return c
}

// Restore rebuilds a coordinator from a checkpoint blob.
func Restore(deps Deps) session.RestoreFunc {
	return func(sessionID string, snapshot []byte) (session.Coordinator, error) {
		st, err := UnmarshalState(snapshot)
		if err != nil {
			return nil, err
		}
		st.SessionID = sessionID
		c := &Coordinator{state: *st, deps: deps}
		c.init()
		return c, nil
	}
}

func (c *Coordinator) init() {
	if c.deps.Log == nil {
		c.deps.Log = slog.Default()
	}
	if c.state.Mastery == nil {
		c.state.Mastery = make(map[string]float64)
	}
	if c.state.Streaks == nil {
		c.state.Streaks = make(map[string]int)
	}
	if c.state.LastSeen == nil {
		c.state.LastSeen = make(map[string]time.Time)
	}
}

// Kind implements session.Coordinator.
func (c *Coordinator) Kind() string { return domain.KindTutor }

// SessionID implements session.Coordinator.
func (c *Coordinator) SessionID() string { return c.state.SessionID }

// Snapshot implements session.Coordinator.
func (c *Coordinator) Snapshot() ([]byte, error) { return c.state.Marshal() }

// State returns a copy of the current session state.
func (c *Coordinator) State() State { return c.state }

// Turn processes one student input through the state machine:
// welcome -> intake -> route -> mode node, ending at end_turn or
// summarize. While a quiz answer is pending, the input is always graded
// first; no other routing can preempt it.
func (c *Coordinator) Turn(ctx context.Context, in stream.Input, sink stream.Sink) (*session.TurnResult, error) {
	defer func() {
		c.state.UpdatedAt = time.Now()
	}()

	// welcome: only a brand-new session loads the profile and greets.
	// Re-entering an initialized session never resets anything.
	if c.state.Phase == PhaseNew {
		c.state.Phase = PhaseTeaching
		c.state.StartedAt = time.Now()
		greeting := c.loadProfile(ctx)
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, greeting)
		if in.Text() == "" {
			return c.endTurn(sink, greeting, session.TerminalEndTurn)
		}
	}
	if in.Text() == "" {
		// Reconnect or duplicate welcome: nothing to process.
		return c.endTurn(sink, domain.LatestAssistantContent(c.state.Messages), session.TerminalEndTurn)
	}

	c.state.Messages = domain.AppendUserMessage(c.state.Messages, in.Text())

	action := c.routeAction(ctx, in)
	if action != actionGradeQuiz && !c.shouldContinue() {
		// The session ran past its time budget; wrap up instead of
		// starting anything new.
		action = actionSummarize
	}
	c.deps.Log.Debug("routed action", "session_id", c.state.SessionID, "action", action)

	return c.dispatch(ctx, action, in, sink)
}

func (c *Coordinator) dispatch(ctx context.Context, action string, in stream.Input, sink stream.Sink) (*session.TurnResult, error) {
	switch action {
	case actionTeach, actionClarify, actionReview:
		return c.explainerTurn(ctx, action, sink)

	case actionGapAnalysis:
		response := c.runGapAnalysis(ctx)
		c.state.Phase = PhaseTeaching
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, response)
		return c.endTurnStreamed(sink, response, session.TerminalEndTurn)

	case actionQuiz:
		response := c.presentQuiz(ctx, sink)
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, response)
		return c.endTurnStreamed(sink, response, session.TerminalEndTurn)

	case actionGradeQuiz:
		response := c.gradeAnswer(ctx, in, sink)
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, response)
		return c.endTurnStreamed(sink, response, session.TerminalEndTurn)

	default: // actionSummarize
		response := c.summarize()
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, response)
		_ = sink.Send(stream.Event{Type: stream.EventMessage, Content: response})
		return c.result(response, session.TerminalSummarize), nil
	}
}

// explainerTurn teaches, clarifies, or reviews. The model's output is
// streamed token by token as it arrives; every third interaction chains
// straight into a quiz instead of handing the turn back.
func (c *Coordinator) explainerTurn(ctx context.Context, mode string, sink stream.Sink) (*session.TurnResult, error) {
	c.state.Phase = PhaseTeaching
	c.state.Interactions++

	focus := c.focusTopic(ctx, mode)
	stance := selectStance(c.state.Mastery[focus.ID], c.state.Messages)

	response, streamed := c.explain(ctx, mode, focus, stance, sink)
	c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, response)

	if c.state.Interactions%3 == 0 && c.shouldContinue() {
		if !streamed {
			if err := stream.Tokens(sink, uuid.NewString(), response); err != nil {
				c.deps.Log.Debug("stream interrupted", "session_id", c.state.SessionID, "error", err)
			}
		}
		question := c.presentQuiz(ctx, sink)
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, question)
		if err := stream.Tokens(sink, uuid.NewString(), question); err != nil {
			c.deps.Log.Debug("stream interrupted", "session_id", c.state.SessionID, "error", err)
		}
		return c.result(response+"\n\n"+question, session.TerminalEndTurn), nil
	}

	if streamed {
		return c.result(response, session.TerminalEndTurn), nil
	}
	return c.endTurnStreamed(sink, response, session.TerminalEndTurn)
}

// explain produces the teaching text. With a model the tokens go to the
// sink as they arrive and the second return is true; otherwise the
// deterministic fallback is returned unstreamed.
func (c *Coordinator) explain(ctx context.Context, mode string, focus domain.Topic, stance string, sink stream.Sink) (string, bool) {
	fallback := c.fallbackExplanation(mode, focus)
	if c.deps.LLM == nil {
		return fallback, false
	}

	material := c.retrieveMaterial(ctx, focus, domain.LatestUserContent(c.state.Messages))

	id := uuid.NewString()
	first := true
	text, err := c.deps.LLM.Stream(ctx, llm.Request{
		System:   c.explainerPrompt(mode, focus, stance, material),
		Messages: tail(c.state.Messages, 8),
	}, func(chunk string) error {
		ev := stream.Event{
			Type:    stream.EventToken,
			Content: chunk,
			Metadata: map[string]any{
				"stream_id": id,
				"is_first":  first,
				"is_last":   false,
			},
		}
		first = false
		return sink.Send(ev)
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			_ = sink.Send(stream.Error("tutor model is unavailable, using a basic reply"))
		}
		return fallback, false
	}
	if strings.TrimSpace(text) == "" {
		return fallback, false
	}
	_ = sink.Send(stream.Event{
		Type: stream.EventToken,
		Metadata: map[string]any{
			"stream_id": id,
			"is_first":  first,
			"is_last":   true,
		},
	})
	return text, true
}

// retrieveMaterial pulls the course chunks most similar to the current
// question, preferring chunks assigned to the focus topic. Retrieval is
// best effort; anything that fails just means an ungrounded explanation.
func (c *Coordinator) retrieveMaterial(ctx context.Context, focus domain.Topic, query string) string {
	if c.deps.Vector == nil {
		return ""
	}
	q := strings.TrimSpace(focus.Title + " " + query)
	if q == "" {
		return ""
	}

	matches, err := c.deps.Vector.Search(ctx, c.state.CourseID, q, 8)
	if err != nil {
		c.deps.Log.Debug("content retrieval unavailable", "course_id", c.state.CourseID, "error", err)
		return ""
	}

	if focus.ID != "" {
		var scoped []vector.Match
		for _, m := range matches {
			if m.Chunk.TopicID == focus.ID {
				scoped = append(scoped, m)
			}
		}
		if len(scoped) > 0 {
			matches = scoped
		}
	}
	if len(matches) > 3 {
		matches = matches[:3]
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(m.Chunk.Content)
	}
	return b.String()
}

func (c *Coordinator) explainerPrompt(mode string, focus domain.Topic, stance, material string) string {
	var b strings.Builder
	b.WriteString("You are a one-on-one tutor. ")
	switch mode {
	case actionClarify:
		b.WriteString("The student is confused; answer their latest question directly and simply. ")
	case actionReview:
		b.WriteString("Lead a short review of material the student learned a while ago. ")
	default:
		b.WriteString("Teach the next piece of material. ")
	}
	if focus.Title != "" {
		b.WriteString("Current topic: ")
		b.WriteString(focus.Title)
		if focus.Description != "" {
			b.WriteString(" (")
			b.WriteString(focus.Description)
			b.WriteString(")")
		}
		b.WriteString(". ")
	}
	switch stance {
	case StanceReassuring:
		b.WriteString("The student is frustrated. Be calm and reassuring, break things into small steps.")
	case StanceSupportive:
		b.WriteString("The student is struggling. Be encouraging and keep explanations simple.")
	case StanceChallenging:
		b.WriteString("The student is doing well. Push a little: add depth and a probing question.")
	case StanceEngaging:
		b.WriteString("The student is disengaged. Use a vivid example and end with a direct question.")
	default:
		b.WriteString("Keep a friendly, balanced tone.")
	}
	if material != "" {
		b.WriteString("\n\nGround the explanation in this course material:\n")
		b.WriteString(material)
	}
	return b.String()
}

func (c *Coordinator) fallbackExplanation(mode string, focus domain.Topic) string {
	switch mode {
	case actionClarify:
		if focus.Title != "" {
			return fmt.Sprintf("Let's slow down on %q. Re-read the material for that topic and tell me which part loses you; I'll take it from there.", focus.Title)
		}
		return "Tell me which part loses you and I'll break it down step by step."
	case actionReview:
		if focus.Title != "" {
			return fmt.Sprintf("Time for a quick review of %q. Try to recall the key ideas, then we'll check them together.", focus.Title)
		}
		return "Nothing is due for review right now. Want to learn something new or take a quiz?"
	default:
		if focus.Title != "" {
			return fmt.Sprintf("Let's work on %q. %s Ask me anything about it, or say \"quiz\" when you want to test yourself.", focus.Title, focus.Description)
		}
		return "This course doesn't have its topics set up yet, so there's nothing for me to teach. Check back once it's published."
	}
}

// focusTopic picks what the explainer talks about: due reviews for
// review mode, the highest-priority gap for teaching, and whatever topic
// the conversation is on for clarifications.
func (c *Coordinator) focusTopic(ctx context.Context, mode string) domain.Topic {
	c.ensureTopics(ctx)

	if mode == actionReview && len(c.state.DueReview) > 0 {
		if t, ok := c.topicByID(c.state.DueReview[0]); ok {
			return t
		}
	}
	if len(c.state.Gaps) > 0 {
		if t, ok := c.topicByID(c.state.Gaps[0].TopicID); ok {
			return t
		}
	}
	if len(c.state.WeakTopics) > 0 {
		if t, ok := c.topicByID(c.state.WeakTopics[0]); ok {
			return t
		}
	}
	if len(c.topics) > 0 {
		// First topic the student hasn't mastered, in graph order.
		for _, t := range c.topics {
			if c.state.Mastery[t.ID] < masteryThreshold {
				return t
			}
		}
		return c.topics[0]
	}
	return domain.Topic{}
}

func (c *Coordinator) runGapAnalysis(ctx context.Context) string {
	c.ensureTopics(ctx)
	gaps := AnalyzeGaps(c.topics, c.state.Mastery)
	c.state.Gaps = gaps

	if len(gaps) == 0 {
		return "I looked over your progress and there are no knowledge gaps right now. Nice work. Want a quiz to keep things sharp?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d area(s) worth working on:\n", len(gaps))
	for i, g := range gaps {
		fmt.Fprintf(&b, "%d. %s (%s priority, mastery %.0f%%)", i+1, g.Title, g.Priority, g.Mastery*100)
		if len(g.Blocks) > 0 {
			fmt.Fprintf(&b, " - blocks %s", strings.Join(g.Blocks, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Let's start with %q. Ready?", gaps[0].Title)
	return b.String()
}

// presentQuiz loads a quiz round if none is in flight and emits the
// current question. The correct answer never leaves the server.
func (c *Coordinator) presentQuiz(ctx context.Context, sink stream.Sink) string {
	if len(c.state.Quiz) == 0 || c.state.QuizCompleted {
		if msg := c.loadQuiz(ctx); msg != "" {
			return msg
		}
	}

	q, ok := c.state.CurrentQuestion()
	if !ok {
		return "There's no quiz in progress. Say \"quiz\" to start one."
	}

	c.state.Phase = PhaseQuizzing
	c.state.AwaitingQuizAnswer = true

	_ = sink.Send(stream.Event{
		Type: stream.EventQuiz,
		Metadata: map[string]any{
			"question_id": q.ID,
			"question":    q.Question,
			"type":        q.Type,
			"options":     q.Options,
			"position":    c.state.QuizPosition + 1,
			"total":       len(c.state.Quiz),
		},
	})
	return formatQuestion(q, c.state.QuizPosition+1, len(c.state.Quiz))
}

// loadQuiz fills a fresh round from the course question bank, weak
// topics first. A non-empty return is a user-facing refusal.
func (c *Coordinator) loadQuiz(ctx context.Context) string {
	if c.deps.Repo == nil {
		return "Quizzes aren't available right now."
	}
	var scope []string
	if len(c.state.WeakTopics) > 0 {
		scope = c.state.WeakTopics
	}
	questions, err := c.deps.Repo.ListQuestions(ctx, c.state.CourseID, scope)
	if err != nil {
		c.deps.Log.Error("load question bank", "course_id", c.state.CourseID, "error", err)
		return "I couldn't load the quiz right now. Let's keep studying and try again in a bit."
	}
	if len(questions) == 0 && scope != nil {
		questions, err = c.deps.Repo.ListQuestions(ctx, c.state.CourseID, nil)
		if err != nil {
			c.deps.Log.Error("load question bank", "course_id", c.state.CourseID, "error", err)
			return "I couldn't load the quiz right now. Let's keep studying and try again in a bit."
		}
	}
	if len(questions) == 0 {
		return "This course doesn't have quiz questions yet, so there's nothing to practice. Let's keep studying instead."
	}
	if len(questions) > quizLength {
		questions = questions[:quizLength]
	}
	c.state.Quiz = questions
	c.state.QuizPosition = 0
	c.state.CorrectCount = 0
	c.state.QuizCompleted = false
	return ""
}

// gradeAnswer grades the pending answer deterministically, records the
// attempt, updates mastery, and either advances to the next question or
// closes the round.
func (c *Coordinator) gradeAnswer(ctx context.Context, in stream.Input, sink stream.Sink) string {
	q, ok := c.state.CurrentQuestion()
	if !ok {
		c.state.AwaitingQuizAnswer = false
		return "I wasn't expecting an answer just now. Say \"quiz\" if you want to practice."
	}

	res := Grade(q, in.Text())
	c.state.AwaitingQuizAnswer = false
	if res.Correct {
		c.state.CorrectCount++
	}

	_ = sink.Send(stream.Event{
		Type: stream.EventQuizResult,
		Metadata: map[string]any{
			"question_id":    q.ID,
			"correct":        res.Correct,
			"score":          res.Score,
			"feedback":       res.Feedback,
			"correct_answer": q.CorrectAnswer,
		},
	})

	if c.deps.Repo != nil {
		attempt := &domain.QuizAttempt{
			ID:         uuid.NewString(),
			SessionID:  c.state.SessionID,
			StudentID:  c.state.StudentID,
			QuestionID: q.ID,
			Answer:     in.Text(),
			Correct:    res.Correct,
			Score:      res.Score,
			CreatedAt:  time.Now(),
		}
		if err := c.deps.Repo.SaveAttempt(ctx, attempt); err != nil {
			c.deps.Log.Warn("save quiz attempt", "question_id", q.ID, "error", err)
		}
	}

	score, streak := c.applyMastery(ctx, q.TopicID, res.Correct)
	_ = sink.Send(stream.Event{
		Type: stream.EventMasteryUpdate,
		Metadata: map[string]any{
			"topic_id": q.TopicID,
			"mastery":  score,
			"streak":   streak,
		},
	})

	c.state.QuizPosition++
	if c.state.QuizPosition < len(c.state.Quiz) && c.shouldContinue() {
		next := c.presentQuiz(ctx, sink)
		return res.Feedback + "\n\n" + next
	}

	c.state.QuizCompleted = true
	c.state.Phase = PhaseTeaching
	c.recomputeProfile(time.Now())

	total := len(c.state.Quiz)
	pct := 0
	if total > 0 {
		pct = 100 * c.state.CorrectCount / total
	}
	summary := fmt.Sprintf("%s\n\nThat's the end of the round: %d of %d correct (%d%%).",
		res.Feedback, c.state.CorrectCount, total, pct)
	switch {
	case pct >= 80:
		summary += " Strong work. Want to push into new material?"
	case pct >= 50:
		summary += " Decent. Let's shore up the ones you missed."
	default:
		summary += " Let's go back over this material together before trying again."
	}
	return summary
}

// applyMastery updates the in-session mastery model and persists the
// record. Correct answers earn +0.1, +0.15 on a streak of three or
// more; wrong answers cost 0.05 and reset the streak.
func (c *Coordinator) applyMastery(ctx context.Context, topicID string, correct bool) (float64, int) {
	score := c.state.Mastery[topicID]
	streak := c.state.Streaks[topicID]

	if correct {
		streak++
		delta := 0.1
		if streak >= 3 {
			delta = 0.15
		}
		score += delta
	} else {
		streak = 0
		score -= 0.05
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	now := time.Now()
	c.state.Mastery[topicID] = score
	c.state.Streaks[topicID] = streak
	c.state.LastSeen[topicID] = now

	if c.deps.Repo != nil {
		rec := &domain.MasteryRecord{
			StudentID: c.state.StudentID,
			TopicID:   topicID,
			Score:     score,
			Streak:    streak,
			LastSeen:  now,
		}
		if err := c.deps.Repo.UpsertMastery(ctx, rec); err != nil {
			c.deps.Log.Warn("persist mastery", "topic_id", topicID, "error", err)
		}
	}
	return score, streak
}

func (c *Coordinator) summarize() string {
	c.state.Phase = PhaseEnded
	c.state.ShouldEnd = true

	var b strings.Builder
	b.WriteString("Good session! Here's where you stand:\n")
	fmt.Fprintf(&b, "- Interactions this session: %d\n", c.state.Interactions)
	if len(c.state.Quiz) > 0 {
		fmt.Fprintf(&b, "- Last quiz round: %d of %d correct\n", c.state.CorrectCount, len(c.state.Quiz))
	}
	c.recomputeProfile(time.Now())
	if len(c.state.WeakTopics) > 0 {
		titles := make([]string, 0, len(c.state.WeakTopics))
		for _, id := range c.state.WeakTopics {
			if t, ok := c.topicByID(id); ok {
				titles = append(titles, t.Title)
			}
		}
		if len(titles) > 0 {
			fmt.Fprintf(&b, "- Keep working on: %s\n", strings.Join(titles, ", "))
		}
	} else {
		b.WriteString("- No weak topics right now. Keep it up!\n")
	}
	b.WriteString("See you next time.")
	return b.String()
}

// loadProfile pulls the student's mastery records, computes weak and
// due-for-review topics, and builds the greeting.
func (c *Coordinator) loadProfile(ctx context.Context) string {
	if c.deps.Repo != nil {
		records, err := c.deps.Repo.GetMastery(ctx, c.state.StudentID)
		if err != nil {
			c.deps.Log.Error("load mastery", "student_id", c.state.StudentID, "error", err)
		}
		for _, r := range records {
			c.state.Mastery[r.TopicID] = r.Score
			c.state.Streaks[r.TopicID] = r.Streak
			c.state.LastSeen[r.TopicID] = r.LastSeen
		}
	}
	c.ensureTopics(ctx)
	c.recomputeProfile(time.Now())

	if len(c.state.Mastery) == 0 {
		return "Hi, I'm your tutor for this course! I'll teach you topic by topic, quiz you along the way, and keep track of what you've mastered. Ready to start?"
	}

	var b strings.Builder
	b.WriteString("Welcome back! ")
	switch {
	case len(c.state.DueReview) > 0 && len(c.state.WeakTopics) > 0:
		fmt.Fprintf(&b, "You have %d topic(s) due for review and %d that could use more work. ",
			len(c.state.DueReview), len(c.state.WeakTopics))
	case len(c.state.DueReview) > 0:
		fmt.Fprintf(&b, "You have %d topic(s) due for review. ", len(c.state.DueReview))
	case len(c.state.WeakTopics) > 0:
		fmt.Fprintf(&b, "There are %d topic(s) that could use more work. ", len(c.state.WeakTopics))
	default:
		b.WriteString("Your mastery is looking solid. ")
	}
	b.WriteString("What would you like to do: learn, review, or take a quiz?")
	return b.String()
}

// recomputeProfile rebuilds the weak and due-for-review topic lists
// from the current mastery model.
func (c *Coordinator) recomputeProfile(now time.Time) {
	c.state.WeakTopics = c.state.WeakTopics[:0]
	c.state.DueReview = c.state.DueReview[:0]

	ids := make([]string, 0, len(c.state.Mastery))
	for id := range c.state.Mastery {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		score := c.state.Mastery[id]
		if score < masteryThreshold {
			c.state.WeakTopics = append(c.state.WeakTopics, id)
			continue
		}
		if seen, ok := c.state.LastSeen[id]; ok && now.Sub(seen) > reviewAfter {
			c.state.DueReview = append(c.state.DueReview, id)
		}
	}
}

func (c *Coordinator) shouldContinue() bool {
	if c.state.ShouldEnd {
		return false
	}
	if !c.state.StartedAt.IsZero() && time.Since(c.state.StartedAt) > maxSessionDuration {
		return false
	}
	return true
}

func (c *Coordinator) ensureTopics(ctx context.Context) {
	if c.topicsLoaded || c.deps.Repo == nil {
		return
	}
	topics, err := c.deps.Repo.ListTopics(ctx, c.state.CourseID)
	if err != nil {
		c.deps.Log.Error("load topic graph", "course_id", c.state.CourseID, "error", err)
		return
	}
	c.topics = topics
	c.topicsLoaded = true
}

func (c *Coordinator) topicByID(id string) (domain.Topic, bool) {
	for _, t := range c.topics {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Topic{}, false
}

func formatQuestion(q domain.QuizQuestion, position, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d: %s", position, total, q.Question)
	switch q.Type {
	case domain.QuestionMultipleChoice:
		for i, opt := range q.Options {
			fmt.Fprintf(&b, "\n%c) %s", 'A'+i, opt)
		}
	case domain.QuestionTrueFalse:
		b.WriteString(" (true/false)")
	}
	return b.String()
}

// endTurnStreamed streams the response as token events, then closes the
// turn.
func (c *Coordinator) endTurnStreamed(sink stream.Sink, response, terminal string) (*session.TurnResult, error) {
	if err := stream.Tokens(sink, uuid.NewString(), response); err != nil {
		c.deps.Log.Debug("stream interrupted", "session_id", c.state.SessionID, "error", err)
	}
	return c.result(response, terminal), nil
}

// endTurn closes the turn with a non-streamed message event.
func (c *Coordinator) endTurn(sink stream.Sink, response, terminal string) (*session.TurnResult, error) {
	if response != "" {
		_ = sink.Send(stream.Event{Type: stream.EventMessage, Content: response})
	}
	return c.result(response, terminal), nil
}

func (c *Coordinator) result(response, terminal string) *session.TurnResult {
	return &session.TurnResult{
		Phase:    c.state.Phase,
		Response: response,
		Terminal: terminal,
		Ended:    terminal == session.TerminalSummarize,
	}
}
