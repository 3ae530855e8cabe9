// Package constructor implements the course-construction coordinator: a
// per-session state machine that collects course info, ingests uploaded
// materials, derives a course structure, generates a question bank, and
// validates the result before publishing.
package constructor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// Coordinator phases.
const (
	PhaseNew            = ""
	PhaseCollectingInfo = "collecting_info"
	PhaseAwaitingFiles  = "awaiting_files"
	PhaseProcessing     = "processing_files"
	PhaseStructuring    = "structuring"
	PhaseQuizGen        = "generating_quiz"
	PhaseValidating     = "validating"
	PhasePublished      = "published"
)

// Namespaced sub-agent result keys.
const (
	resultIngestion  = "ingestion"
	resultStructure  = "structure"
	resultQuizGen    = "quiz_generation"
	resultValidation = "validation"
)

// State is the constructor session state threaded through every node of
// a turn and checkpointed after it.
type State struct {
	SessionID string `json:"session_id"`
	CreatorID string `json:"creator_id"`
	CourseID  string `json:"course_id,omitempty"`
	Phase     string `json:"phase"`

	Messages []domain.Message `json:"messages"`

	CourseInfo domain.CourseInfo `json:"course_info"`

	UploadedFiles []domain.UploadedFile `json:"uploaded_files"`
	// ProcessedFiles holds ids of files the ingestion pipeline has
	// consumed, successfully or not.
	ProcessedFiles []string `json:"processed_files"`

	ContentChunks []domain.ContentChunk `json:"content_chunks"`
	Units         []domain.Unit         `json:"units"`
	Topics        []domain.Topic        `json:"topics"`
	QuizQuestions []domain.QuizQuestion `json:"quiz_questions"`

	SubagentResults map[string]domain.SubAgentResult `json:"subagent_results"`

	ValidationPassed bool    `json:"validation_passed"`
	Validated        bool    `json:"validated"`
	ReadinessScore   float64 `json:"readiness_score"`
	Published        bool    `json:"published"`

	Progress float64  `json:"progress"`
	Errors   []string `json:"errors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnprocessedFiles returns uploaded files ingestion has not consumed yet.
func (s *State) UnprocessedFiles() []domain.UploadedFile {
	done := make(map[string]bool, len(s.ProcessedFiles))
	for _, id := range s.ProcessedFiles {
		done[id] = true
	}
	var out []domain.UploadedFile
	for _, f := range s.UploadedFiles {
		if !done[f.ID] {
			out = append(out, f)
		}
	}
	return out
}

// HasCourseInfo reports whether enough course info was collected to move
// on to file intake.
func (s *State) HasCourseInfo() bool {
	return s.CourseInfo.Title != ""
}

func (s *State) recordResult(key string, r domain.SubAgentResult) {
	if s.SubagentResults == nil {
		s.SubagentResults = make(map[string]domain.SubAgentResult)
	}
	s.SubagentResults[key] = r
}

// Marshal serializes the state for checkpointing.
func (s *State) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal constructor state: %w", err)
	}
	return b, nil
}

// UnmarshalState restores a checkpointed state blob.
func UnmarshalState(b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal constructor state: %w", err)
	}
	return &s, nil
}

// phaseProgress maps a phase to overall construction progress.
func phaseProgress(phase string) float64 {
	switch phase {
	case PhaseCollectingInfo:
		return 0.1
	case PhaseAwaitingFiles:
		return 0.2
	case PhaseProcessing:
		return 0.4
	case PhaseStructuring:
		return 0.6
	case PhaseQuizGen:
		return 0.75
	case PhaseValidating:
		return 0.9
	case PhasePublished:
		return 1.0
	default:
		return 0
	}
}
