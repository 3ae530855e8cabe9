package constructor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/extract"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
	"github.com/mamounyosef/agentic-tutor/internal/session"
	"github.com/mamounyosef/agentic-tutor/internal/store"
	"github.com/mamounyosef/agentic-tutor/internal/stream"
	"github.com/mamounyosef/agentic-tutor/internal/vector"
)

const welcomeMessage = `Welcome! I'm your course constructor. Tell me about the course you want ` +
	`to build: its title, what it covers, and who it's for. Then upload your ` +
	`materials and I'll turn them into a structured course with quizzes.`

// Deps are the collaborators a constructor coordinator needs. LLM may be
// nil; every decision then takes the deterministic path.
type Deps struct {
	LLM        llm.Client
	Repo       store.Repository
	Extractors *extract.Registry
	Vector     *vector.Store
	Log        *slog.Logger
}

// Coordinator drives one constructor session. Not safe for concurrent
// turns; the session manager serializes access.
type Coordinator struct {
	state State
	deps  Deps

	ingestion *Ingestion
	quizzer   *QuizGen
	structure *Structure
}

// New creates a coordinator for a brand-new session.
func New(sessionID, creatorID string, deps Deps) *Coordinator {
	c := &Coordinator{
		state: State{
			SessionID: sessionID,
			CreatorID: creatorID,
			CourseID:  uuid.NewString(),
			CreatedAt: time.Now(),
		},
		deps: deps,
	}
	c.initPipelines()
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
		c.initPipelines()
		return c, nil
	}
}

func (c *Coordinator) initPipelines() {
	if c.deps.Log == nil {
		c.deps.Log = slog.Default()
	}
	c.ingestion = &Ingestion{Extractors: c.deps.Extractors, Vector: c.deps.Vector}
	c.structure = &Structure{LLM: c.deps.LLM}
	c.quizzer = &QuizGen{LLM: c.deps.LLM}
}

// Kind implements session.Coordinator.
func (c *Coordinator) Kind() string { return domain.KindConstructor }

// SessionID implements session.Coordinator.
func (c *Coordinator) SessionID() string { return c.state.SessionID }

// Snapshot implements session.Coordinator.
func (c *Coordinator) Snapshot() ([]byte, error) { return c.state.Marshal() }

// CourseID returns the id of the course under construction.
func (c *Coordinator) CourseID() string { return c.state.CourseID }

// State returns a copy of the current session state.
func (c *Coordinator) State() State { return c.state }

// Turn processes one external input through the state machine:
// welcome -> intake -> route_action -> dispatch -> respond, ending at
// end_turn or finalize. The response is synthesized after the sub-agent
// delta is merged so it reflects post-dispatch state.
func (c *Coordinator) Turn(ctx context.Context, in stream.Input, sink stream.Sink) (*session.TurnResult, error) {
	defer func() {
		c.state.UpdatedAt = time.Now()
	}()

	// welcome: only a brand-new session gets initial defaults and the
	// welcome message. Re-entering an initialized session never resets
	// conversation or progress.
	if c.state.Phase == PhaseNew {
		c.state.Phase = PhaseCollectingInfo
		c.state.Progress = phaseProgress(PhaseCollectingInfo)
		c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, welcomeMessage)
		if in.Text() == "" && len(in.FileIDs) == 0 {
			return c.endTurn(sink, welcomeMessage, session.TerminalEndTurn)
		}
	}
	if in.Text() == "" && len(in.FileIDs) == 0 {
		// Reconnect or duplicate welcome: nothing to process.
		return c.endTurn(sink, domain.LatestAssistantContent(c.state.Messages), session.TerminalEndTurn)
	}

	// intake: append the user's input; routing happens separately.
	if in.Type == stream.InputUpload {
		n, err := c.registerUploads(ctx, in.FileIDs)
		if err != nil {
			c.deps.Log.Error("register uploads", "session_id", c.state.SessionID, "error", err)
			_ = sink.Send(stream.Error("could not register the uploaded files"))
		}
		c.state.Messages = domain.AppendUserMessage(c.state.Messages,
			fmt.Sprintf("Uploaded %d file(s).", n))
	} else {
		c.state.Messages = domain.AppendUserMessage(c.state.Messages, in.Text())
		c.collectCourseInfo(ctx, in.Text())
	}

	action := c.routeAction(ctx)
	c.deps.Log.Debug("routed action", "session_id", c.state.SessionID, "action", action)

	return c.dispatch(ctx, action, sink)
}

// dispatch invokes at most one sub-agent pipeline, merges its delta, and
// routes to the response.
func (c *Coordinator) dispatch(ctx context.Context, action string, sink stream.Sink) (*session.TurnResult, error) {
	terminal := session.TerminalEndTurn
	var fallback string

	switch action {
	case ActionDispatchIngestion:
		c.setPhase(sink, PhaseProcessing)
		fallback = c.runIngestion(ctx, sink)

	case ActionDispatchStructure:
		c.setPhase(sink, PhaseStructuring)
		fallback = c.runStructure(ctx, sink)

	case ActionDispatchQuiz:
		c.setPhase(sink, PhaseQuizGen)
		fallback = c.runQuizGen(ctx, sink)

	case ActionDispatchValidate:
		c.setPhase(sink, PhaseValidating)
		fallback = c.runValidation(sink)

	case ActionFinalize:
		if c.state.Validated && c.state.ValidationPassed {
			c.state.Published = true
			c.setPhase(sink, PhasePublished)
			fallback = fmt.Sprintf("Your course %q is validated and published. Students can now enroll.",
				c.state.CourseInfo.Title)
			terminal = session.TerminalFinalize
		} else {
			fallback = "The course has to pass validation before it can be published. Run validation first."
		}

	case ActionRequestFiles:
		c.setPhase(sink, PhaseAwaitingFiles)
		fallback = "Please upload your course materials (text or markdown files) and I'll process them."

	case ActionCollectInfo:
		if c.state.HasCourseInfo() {
			fallback = fmt.Sprintf("Got it. %q is taking shape. Anything else about the course before you upload materials?",
				c.state.CourseInfo.Title)
		} else {
			fallback = "Tell me a bit more: what should the course be called, and what should it cover?"
		}

	default: // ActionRespond
		fallback = "I'm here to help you build the course. You can tell me more, upload files, or ask where we are."
	}

	response := c.respond(ctx, sink, fallback)
	c.state.Messages = domain.AppendAssistantMessage(c.state.Messages, response)
	return c.endTurnStreamed(sink, response, terminal)
}

// respond synthesizes the assistant text for the turn. With a model it
// rewrites the deterministic summary in a conversational register; on
// capability failure the summary itself is the reply.
func (c *Coordinator) respond(ctx context.Context, sink stream.Sink, fallback string) string {
	if c.deps.LLM == nil {
		return fallback
	}
	resp, err := c.deps.LLM.Complete(ctx, llm.Request{
		System: "You are a course construction assistant. Deliver this update to the " +
			"creator in a natural, concise way. Keep every fact intact.\n\nUpdate: " + fallback +
			"\nState: " + c.stateSummary(),
		Messages: tail(c.state.Messages, 6),
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			_ = sink.Send(stream.Error("assistant model is unavailable, using a basic reply"))
		}
		return fallback
	}
	if strings.TrimSpace(resp.Content) == "" {
		return fallback
	}
	return resp.Content
}

func (c *Coordinator) runIngestion(ctx context.Context, sink stream.Sink) string {
	files := c.state.UnprocessedFiles()
	delta := c.ingestion.Run(ctx, c.state.CourseID, files)

	// Merge: only the fields the delta names change.
	c.state.ProcessedFiles = append(c.state.ProcessedFiles, delta.ProcessedFileIDs...)
	c.state.ContentChunks = append(c.state.ContentChunks, delta.Chunks...)
	for i := range c.state.UploadedFiles {
		f := &c.state.UploadedFiles[i]
		if msg, failed := delta.FailedFiles[f.ID]; failed {
			f.Error = msg
		}
	}
	c.state.recordResult(resultIngestion, delta.Result)

	if c.deps.Repo != nil {
		for _, id := range delta.ProcessedFileIDs {
			if err := c.deps.Repo.MarkFileProcessed(ctx, id, delta.FailedFiles[id]); err != nil {
				c.deps.Log.Warn("mark file processed", "file_id", id, "error", err)
			}
		}
	}

	processed := len(delta.ProcessedFileIDs) - len(delta.FailedFiles)
	if !delta.Result.Completed() {
		c.state.Errors = append(c.state.Errors, delta.Result.Errors...)
		_ = sink.Send(stream.Error("file processing failed for all files"))
		return "I couldn't extract content from any of the uploaded files. Check the formats and try again."
	}
	msg := fmt.Sprintf("Processed %d file(s) into %d content chunks.", processed, len(delta.Chunks))
	if len(delta.FailedFiles) > 0 {
		msg += fmt.Sprintf(" %d file(s) failed and were skipped.", len(delta.FailedFiles))
	}
	return msg + " Next I'll derive the course structure."
}

func (c *Coordinator) runStructure(ctx context.Context, sink stream.Sink) string {
	delta := c.structure.Run(ctx, c.state.ContentChunks)
	c.state.recordResult(resultStructure, delta.Result)

	if !delta.Finalized {
		c.state.Errors = append(c.state.Errors, delta.Result.Errors...)
		_ = sink.Send(stream.Error(strings.Join(delta.Result.Errors, "; ")))
		return "Structure generation hit a problem: " + strings.Join(delta.Result.Errors, "; ") +
			". Fix the materials or rerun structuring."
	}

	c.state.Units = delta.Units
	c.state.Topics = delta.Topics
	if c.deps.Repo != nil {
		if err := c.deps.Repo.SaveTopics(ctx, c.state.CourseID, delta.Topics); err != nil {
			c.deps.Log.Warn("persist topic graph", "course_id", c.state.CourseID, "error", err)
		}
	}

	// Stamp topic assignments onto the session's chunks.
	topicByChunk := make(map[string]string)
	for _, t := range delta.Topics {
		for _, id := range t.ChunkIDs {
			topicByChunk[id] = t.ID
		}
	}
	for i := range c.state.ContentChunks {
		if tid, ok := topicByChunk[c.state.ContentChunks[i].ID]; ok {
			c.state.ContentChunks[i].TopicID = tid
		}
	}

	return fmt.Sprintf("Organized the material into %d unit(s) covering %d topic(s). Quiz generation is next.",
		len(delta.Units), len(delta.Topics))
}

func (c *Coordinator) runQuizGen(ctx context.Context, sink stream.Sink) string {
	delta := c.quizzer.Run(ctx, c.state.Topics, c.state.ContentChunks)
	c.state.recordResult(resultQuizGen, delta.Result)

	if !delta.Result.Completed() {
		c.state.Errors = append(c.state.Errors, delta.Result.Errors...)
		_ = sink.Send(stream.Error("quiz generation failed"))
		return "Quiz generation failed: " + strings.Join(delta.Result.Errors, "; ")
	}

	c.state.QuizQuestions = delta.Questions
	if c.deps.Repo != nil {
		if err := c.deps.Repo.SaveQuestions(ctx, c.state.CourseID, delta.Questions); err != nil {
			c.deps.Log.Warn("persist question bank", "course_id", c.state.CourseID, "error", err)
		}
	}

	return fmt.Sprintf("Generated %d quiz question(s) across %d topic(s). Run validation when you're ready to publish.",
		len(delta.Questions), delta.TopicsCompleted)
}

func (c *Coordinator) runValidation(sink stream.Sink) string {
	delta := Validate(c.state.Topics, c.state.Units, c.state.ContentChunks, c.state.QuizQuestions)
	c.state.recordResult(resultValidation, delta.Result)
	c.state.Validated = true
	c.state.ValidationPassed = delta.Passed
	c.state.ReadinessScore = delta.Readiness

	_ = sink.Send(stream.Event{
		Type: stream.EventValidation,
		Metadata: map[string]any{
			"passed":          delta.Passed,
			"readiness_score": delta.Readiness,
			"errors":          delta.Errors,
			"warnings":        delta.Warnings,
		},
	})

	if delta.Passed {
		return fmt.Sprintf("Validation passed with a readiness score of %.2f. Say the word and I'll publish the course.",
			delta.Readiness)
	}
	return fmt.Sprintf("Validation found %d issue(s) (readiness %.2f): %s",
		len(delta.Errors), delta.Readiness, strings.Join(delta.Errors, "; "))
}

// registerUploads pulls the referenced file records into session state.
func (c *Coordinator) registerUploads(ctx context.Context, fileIDs []string) (int, error) {
	if c.deps.Repo == nil {
		return 0, fmt.Errorf("no repository configured")
	}
	files, err := c.deps.Repo.ListSessionFiles(ctx, c.state.SessionID)
	if err != nil {
		return 0, fmt.Errorf("list session files: %w", err)
	}

	wanted := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		wanted[id] = true
	}
	known := make(map[string]bool, len(c.state.UploadedFiles))
	for _, f := range c.state.UploadedFiles {
		known[f.ID] = true
	}

	added := 0
	for _, f := range files {
		if wanted[f.ID] && !known[f.ID] {
			c.state.UploadedFiles = append(c.state.UploadedFiles, *f)
			added++
		}
	}
	return added, nil
}

type extractedInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
}

// collectCourseInfo opportunistically fills course info from the
// conversation. Parsing is tolerant; nothing here can fail the turn.
func (c *Coordinator) collectCourseInfo(ctx context.Context, text string) {
	if c.deps.LLM == nil || c.state.HasCourseInfo() {
		return
	}
	resp, err := c.deps.LLM.Complete(ctx, llm.Request{
		System: `Extract course details from the message. Reply with JSON only:
{"title": "...", "description": "...", "difficulty": "beginner"|"intermediate"|"advanced"}.
Use "" for anything not mentioned.`,
		Messages: []domain.Message{{Role: domain.RoleUser, Content: text}},
	})
	if err != nil {
		return
	}
	var info extractedInfo
	if err := json.Unmarshal([]byte(jsonSlice(resp.Content, '{', '}')), &info); err != nil {
		return
	}
	if info.Title != "" {
		c.state.CourseInfo.Title = info.Title
	}
	if info.Description != "" {
		c.state.CourseInfo.Description = info.Description
	}
	if info.Difficulty != "" {
		c.state.CourseInfo.Difficulty = info.Difficulty
	}
}

func (c *Coordinator) setPhase(sink stream.Sink, phase string) {
	c.state.Phase = phase
	c.state.Progress = phaseProgress(phase)
	_ = sink.Send(stream.Status(phase, c.state.Progress))
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
		Progress: c.state.Progress,
		Ended:    terminal == session.TerminalFinalize,
	}
}
