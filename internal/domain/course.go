package domain

import "time"

// Question types.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Sub-agent result statuses.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)

// CourseInfo is what the constructor learns about the course from the
// conversation before any files arrive.
type CourseInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
}

// UploadedFile is a reference to a creator-uploaded source file.
type UploadedFile struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // txt, md, pdf, ...
	Path      string    `json:"path"`
	Processed bool      `json:"processed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentChunk is one extracted, embeddable slice of course material.
type ContentChunk struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	FileID   string `json:"file_id"`
	TopicID  string `json:"topic_id,omitempty"`
	Index    int    `json:"index"`
	Content  string `json:"content"`
}

// Topic is a teachable concept. Prerequisites reference other topics by
// their stable ids, never by position.
type Topic struct {
	ID            string   `json:"id"`
	UnitID        string   `json:"unit_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Order         int      `json:"order"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	ChunkIDs      []string `json:"chunk_ids,omitempty"`
}

// Unit groups ordered topics.
type Unit struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id,omitempty"`
	Title    string   `json:"title"`
	Order    int      `json:"order"`
	TopicIDs []string `json:"topic_ids"`
}

// QuizQuestion is one entry in a course's question bank. Options is
// populated for multiple choice only; Rubric holds the required terms for
// short-answer grading.
type QuizQuestion struct {
	ID            string   `json:"id"`
	TopicID       string   `json:"topic_id"`
	Type          string   `json:"type"`
	Difficulty    string   `json:"difficulty"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Rubric        []string `json:"rubric,omitempty"`
}

// MasteryRecord is a student's estimated proficiency for one topic,
// a scalar in [0,1].
type MasteryRecord struct {
	StudentID string    `json:"student_id"`
	TopicID   string    `json:"topic_id"`
	Score     float64   `json:"score"`
	Streak    int       `json:"streak"`
	LastSeen  time.Time `json:"last_seen"`
}

// QuizAttempt records one graded answer.
type QuizAttempt struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"answer"`
	Correct    bool      `json:"correct"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubAgentResult is the structured outcome of one pipeline invocation,
// attached under a namespaced key and overwritten on re-invocation.
type SubAgentResult struct {
	Status  string         `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	Errors  []string       `json:"errors,omitempty"`
}

// Completed reports whether the invocation finished successfully.
func (r SubAgentResult) Completed() bool { return r.Status == ResultCompleted }
