package tutor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// Coordinator phases.
const (
	PhaseNew      = ""
	PhaseTeaching = "teaching"
	PhaseQuizzing = "quizzing"
	PhaseEnded    = "ended"
)

// Tutoring actions. The set is closed: routing never acts on a decision
// outside it.
const (
	actionTeach       = "teach"
	actionClarify     = "clarify"
	actionReview      = "review"
	actionGapAnalysis = "gap_analysis"
	actionQuiz        = "quiz"
	actionGradeQuiz   = "grade_quiz"
	actionSummarize   = "summarize"
)

// maxSessionDuration is the hard cap after which any turn is forced to
// wrap up.
const maxSessionDuration = 60 * time.Minute

// reviewAfter is how long a mastered topic can go unseen before it is
// due for review.
const reviewAfter = 7 * 24 * time.Hour

// State is the tutor session state threaded through a turn and
// checkpointed after it.
type State struct {
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	Phase     string `json:"phase"`

	Messages []domain.Message `json:"messages"`

	// Mastery is the per-topic snapshot loaded at welcome and updated as
	// answers are graded.
	Mastery  map[string]float64   `json:"mastery"`
	Streaks  map[string]int       `json:"streaks,omitempty"`
	LastSeen map[string]time.Time `json:"last_seen,omitempty"`

	WeakTopics []string `json:"weak_topics,omitempty"`
	DueReview  []string `json:"due_review,omitempty"`

	Interactions int `json:"interactions"`

	Quiz               []domain.QuizQuestion `json:"quiz,omitempty"`
	QuizPosition       int                   `json:"quiz_position"`
	AwaitingQuizAnswer bool                  `json:"awaiting_quiz_answer"`
	QuizCompleted      bool                  `json:"quiz_completed"`
	CorrectCount       int                   `json:"correct_count"`

	Gaps []Gap `json:"gaps,omitempty"`

	ShouldEnd bool      `json:"should_end"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentQuestion returns the question awaiting an answer, if any.
func (s *State) CurrentQuestion() (domain.QuizQuestion, bool) {
	if s.QuizPosition < 0 || s.QuizPosition >= len(s.Quiz) {
		return domain.QuizQuestion{}, false
	}
	return s.Quiz[s.QuizPosition], true
}

// Marshal serializes the state for checkpointing.
func (s *State) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal tutor state: %w", err)
	}
	return b, nil
}

// UnmarshalState restores a checkpointed state blob.
func UnmarshalState(b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal tutor state: %w", err)
	}
	return &s, nil
}
