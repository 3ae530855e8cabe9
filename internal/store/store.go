// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// Repository defines the interface for persisting sessions, checkpoints,
// and course data.
type Repository interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a session by id. Returns (nil, nil) if absent.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpdateSession persists the mutable session fields (phase, subject,
	// turn counter, active flag, last activity).
	UpdateSession(ctx context.Context, s *domain.Session) error

	// ExpireIdleSessions marks sessions inactive whose last activity is
	// older than ttl. Returns the number of sessions expired.
	ExpireIdleSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// PutCheckpoint appends a new versioned state blob for a session and
	// returns the version written. Versions are monotonically increasing
	// per session.
	PutCheckpoint(ctx context.Context, sessionID string, state []byte) (int64, error)

	// LatestCheckpoint returns the newest state blob and its version for a
	// session. Returns (nil, 0, nil) if no checkpoint exists.
	LatestCheckpoint(ctx context.Context, sessionID string) ([]byte, int64, error)

	// SaveFile records an uploaded file reference.
	SaveFile(ctx context.Context, f *domain.UploadedFile) error

	// MarkFileProcessed flags a file as processed, recording the extraction
	// error if there was one.
	MarkFileProcessed(ctx context.Context, fileID string, procErr string) error

	// ListSessionFiles returns all file references for a session.
	ListSessionFiles(ctx context.Context, sessionID string) ([]*domain.UploadedFile, error)

	// SaveChunks persists content chunks with their embedding vectors.
	// len(embeddings) must equal len(chunks); a nil embedding is allowed.
	SaveChunks(ctx context.Context, chunks []domain.ContentChunk, embeddings [][]float32) error

	// ChunksWithEmbeddings returns all chunks for a course together with
	// their stored embeddings, aligned by index.
	ChunksWithEmbeddings(ctx context.Context, courseID string) ([]domain.ContentChunk, [][]float32, error)

	// SaveTopics replaces the persisted topic graph for a course.
	SaveTopics(ctx context.Context, courseID string, topics []domain.Topic) error

	// ListTopics returns the topic graph for a course, ordered.
	ListTopics(ctx context.Context, courseID string) ([]domain.Topic, error)

	// SaveQuestions persists quiz questions into the course's bank.
	SaveQuestions(ctx context.Context, courseID string, questions []domain.QuizQuestion) error

	// ListQuestions returns the question bank for a course, optionally
	// scoped to the given topic ids (nil means all topics).
	ListQuestions(ctx context.Context, courseID string, topicIDs []string) ([]domain.QuizQuestion, error)

	// GetMastery returns all mastery records for a student.
	GetMastery(ctx context.Context, studentID string) ([]domain.MasteryRecord, error)

	// UpsertMastery creates or updates one student/topic mastery record.
	UpsertMastery(ctx context.Context, m *domain.MasteryRecord) error

	// SaveAttempt records a graded quiz answer.
	SaveAttempt(ctx context.Context, a *domain.QuizAttempt) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
