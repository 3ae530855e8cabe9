package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db           *sql.DB
	checkpointMu sync.Mutex // serializes checkpoint writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		subject_id TEXT,
		phase TEXT NOT NULL,
		turn_counter INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_activity_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity_at) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		state BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, version)
	);

	CREATE TABLE IF NOT EXISTS files (
		file_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		path TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_session ON files(session_id);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		file_id TEXT NOT NULL,
		topic_id TEXT,
		idx INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course_id);

	CREATE TABLE IF NOT EXISTS topics (
		topic_id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		unit_id TEXT,
		title TEXT NOT NULL,
		description TEXT,
		ord INTEGER NOT NULL,
		prereqs_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_topics_course ON topics(course_id);

	CREATE TABLE IF NOT EXISTS questions (
		question_id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		type TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		question TEXT NOT NULL,
		options_json TEXT,
		correct_answer TEXT NOT NULL,
		rubric_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_questions_course ON questions(course_id);

	CREATE TABLE IF NOT EXISTS mastery (
		student_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		score REAL NOT NULL,
		streak INTEGER NOT NULL DEFAULT 0,
		last_seen INTEGER NOT NULL,
		PRIMARY KEY (student_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		answer TEXT NOT NULL,
		correct INTEGER NOT NULL,
		score REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_student ON attempts(student_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	query := `
		INSERT INTO sessions (session_id, owner_id, kind, subject_id, phase, turn_counter, active, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var subjectID interface{}
	if sess.SubjectID != "" {
		subjectID = sess.SubjectID
	}

	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID, sess.OwnerID, sess.Kind, subjectID, sess.Phase,
		sess.TurnCounter, boolToInt(sess.Active),
		sess.CreatedAt.Unix(), sess.LastActivityAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, owner_id, kind, subject_id, phase, turn_counter, active, created_at, last_activity_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var sess domain.Session
	var subjectID sql.NullString
	var active int
	var createdAt, lastActivity int64

	err := row.Scan(
		&sess.SessionID, &sess.OwnerID, &sess.Kind, &subjectID, &sess.Phase,
		&sess.TurnCounter, &active, &createdAt, &lastActivity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.SubjectID = subjectID.String
	sess.Active = active != 0
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.LastActivityAt = time.Unix(lastActivity, 0)

	return &sess, nil
}

// UpdateSession persists the mutable session fields.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	query := `
		UPDATE sessions
		SET subject_id = ?, phase = ?, turn_counter = ?, active = ?, last_activity_at = ?
		WHERE session_id = ?`

	var subjectID interface{}
	if sess.SubjectID != "" {
		subjectID = sess.SubjectID
	}

	result, err := s.db.ExecContext(ctx, query,
		subjectID, sess.Phase, sess.TurnCounter, boolToInt(sess.Active),
		sess.LastActivityAt.Unix(), sess.SessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateSession affected 0 rows", "session_id", sess.SessionID)
	}

	return nil
}

// ExpireIdleSessions marks idle sessions inactive.
func (s *SQLiteStore) ExpireIdleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `UPDATE sessions SET active = 0 WHERE active = 1 AND last_activity_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("expire idle sessions: %w", err)
	}
	return result.RowsAffected()
}

// PutCheckpoint appends a new versioned state blob for a session.
// Retries with exponential backoff on SQLITE_BUSY since a checkpoint is
// written at the end of every turn.
func (s *SQLiteStore) PutCheckpoint(ctx context.Context, sessionID string, state []byte) (int64, error) {
	var version int64
	err := withBusyRetry("put checkpoint", func() error {
		var err error
		version, err = s.putCheckpointOnce(ctx, sessionID, state)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("put checkpoint for %s: %w", sessionID, err)
	}
	return version, nil
}

func (s *SQLiteStore) putCheckpointOnce(ctx context.Context, sessionID string, state []byte) (int64, error) {
	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var version int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM checkpoints WHERE session_id = ?`, sessionID)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read checkpoint version: %w", err)
	}
	version++

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, version, state, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, version, state, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit checkpoint: %w", err)
	}
	return version, nil
}

// LatestCheckpoint returns the newest state blob and version for a session.
func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, sessionID string) ([]byte, int64, error) {
	query := `
		SELECT state, version FROM checkpoints
		WHERE session_id = ? ORDER BY version DESC LIMIT 1`

	var state []byte
	var version int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&state, &version)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("scan checkpoint: %w", err)
	}
	return state, version, nil
}

// SaveFile records an uploaded file reference.
func (s *SQLiteStore) SaveFile(ctx context.Context, f *domain.UploadedFile) error {
	query := `
		INSERT INTO files (file_id, session_id, name, type, path, processed, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			processed = excluded.processed,
			error = excluded.error`

	var procErr interface{}
	if f.Error != "" {
		procErr = f.Error
	}

	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.SessionID, f.Name, f.Type, f.Path,
		boolToInt(f.Processed), procErr, f.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	return nil
}

// MarkFileProcessed flags a file as processed with an optional error.
func (s *SQLiteStore) MarkFileProcessed(ctx context.Context, fileID string, procErr string) error {
	var errVal interface{}
	if procErr != "" {
		errVal = procErr
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET processed = 1, error = ? WHERE file_id = ?`, errVal, fileID)
	if err != nil {
		return fmt.Errorf("mark file processed: %w", err)
	}
	return nil
}

// ListSessionFiles returns all file references for a session.
func (s *SQLiteStore) ListSessionFiles(ctx context.Context, sessionID string) ([]*domain.UploadedFile, error) {
	query := `
		SELECT file_id, session_id, name, type, path, processed, error, created_at
		FROM files WHERE session_id = ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session files: %w", err)
	}
	defer closeRows(rows, "session files")

	var files []*domain.UploadedFile
	for rows.Next() {
		var f domain.UploadedFile
		var processed int
		var procErr sql.NullString
		var createdAt int64

		if err := rows.Scan(&f.ID, &f.SessionID, &f.Name, &f.Type, &f.Path,
			&processed, &procErr, &createdAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		f.Processed = processed != 0
		f.Error = procErr.String
		f.CreatedAt = time.Unix(createdAt, 0)
		files = append(files, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session files: %w", err)
	}
	return files, nil
}

// SaveChunks persists content chunks with their embedding vectors.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []domain.ContentChunk, embeddings [][]float32) error {
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("save chunks: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO chunks (chunk_id, course_id, file_id, topic_id, idx, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			topic_id = excluded.topic_id,
			content = excluded.content,
			embedding = excluded.embedding`

	for i, c := range chunks {
		var topicID interface{}
		if c.TopicID != "" {
			topicID = c.TopicID
		}
		var emb interface{}
		if embeddings[i] != nil {
			emb = encodeEmbedding(embeddings[i])
		}
		if _, err := tx.ExecContext(ctx, query,
			c.ID, c.CourseID, c.FileID, topicID, c.Index, c.Content, emb); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// ChunksWithEmbeddings returns all chunks for a course with embeddings.
func (s *SQLiteStore) ChunksWithEmbeddings(ctx context.Context, courseID string) ([]domain.ContentChunk, [][]float32, error) {
	query := `
		SELECT chunk_id, course_id, file_id, topic_id, idx, content, embedding
		FROM chunks WHERE course_id = ? ORDER BY idx`

	rows, err := s.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("query chunks: %w", err)
	}
	defer closeRows(rows, "chunks")

	var chunks []domain.ContentChunk
	var embeddings [][]float32
	for rows.Next() {
		var c domain.ContentChunk
		var topicID sql.NullString
		var emb []byte

		if err := rows.Scan(&c.ID, &c.CourseID, &c.FileID, &topicID, &c.Index, &c.Content, &emb); err != nil {
			return nil, nil, fmt.Errorf("scan chunk row: %w", err)
		}
		c.TopicID = topicID.String
		chunks = append(chunks, c)
		embeddings = append(embeddings, decodeEmbedding(emb))
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, embeddings, nil
}

// SaveTopics replaces the persisted topic graph for a course.
func (s *SQLiteStore) SaveTopics(ctx context.Context, courseID string, topics []domain.Topic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin topics tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE course_id = ?`, courseID); err != nil {
		return fmt.Errorf("clear topics: %w", err)
	}

	query := `
		INSERT INTO topics (topic_id, course_id, unit_id, title, description, ord, prereqs_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, t := range topics {
		prereqsJSON, err := marshalNullable(t.Prerequisites)
		if err != nil {
			return fmt.Errorf("marshal prerequisites for %s: %w", t.ID, err)
		}
		var unitID interface{}
		if t.UnitID != "" {
			unitID = t.UnitID
		}
		var desc interface{}
		if t.Description != "" {
			desc = t.Description
		}
		if _, err := tx.ExecContext(ctx, query,
			t.ID, courseID, unitID, t.Title, desc, t.Order, prereqsJSON); err != nil {
			return fmt.Errorf("insert topic %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit topics: %w", err)
	}
	return nil
}

// ListTopics returns the topic graph for a course, ordered.
func (s *SQLiteStore) ListTopics(ctx context.Context, courseID string) ([]domain.Topic, error) {
	query := `
		SELECT topic_id, unit_id, title, description, ord, prereqs_json
		FROM topics WHERE course_id = ? ORDER BY ord`

	rows, err := s.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer closeRows(rows, "topics")

	var topics []domain.Topic
	for rows.Next() {
		var t domain.Topic
		var unitID, desc, prereqsJSON sql.NullString

		if err := rows.Scan(&t.ID, &unitID, &t.Title, &desc, &t.Order, &prereqsJSON); err != nil {
			return nil, fmt.Errorf("scan topic row: %w", err)
		}
		t.UnitID = unitID.String
		t.Description = desc.String
		if prereqsJSON.Valid {
			if err := json.Unmarshal([]byte(prereqsJSON.String), &t.Prerequisites); err != nil {
				return nil, fmt.Errorf("unmarshal prerequisites for %s: %w", t.ID, err)
			}
		}
		topics = append(topics, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

// SaveQuestions persists quiz questions into the course's bank.
func (s *SQLiteStore) SaveQuestions(ctx context.Context, courseID string, questions []domain.QuizQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin questions tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO questions (question_id, course_id, topic_id, type, difficulty, question, options_json, correct_answer, rubric_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			question = excluded.question,
			options_json = excluded.options_json,
			correct_answer = excluded.correct_answer,
			rubric_json = excluded.rubric_json`

	for _, q := range questions {
		optionsJSON, err := marshalNullable(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options for %s: %w", q.ID, err)
		}
		rubricJSON, err := marshalNullable(q.Rubric)
		if err != nil {
			return fmt.Errorf("marshal rubric for %s: %w", q.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			q.ID, courseID, q.TopicID, q.Type, q.Difficulty, q.Question,
			optionsJSON, q.CorrectAnswer, rubricJSON); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit questions: %w", err)
	}
	return nil
}

// ListQuestions returns the question bank for a course.
func (s *SQLiteStore) ListQuestions(ctx context.Context, courseID string, topicIDs []string) ([]domain.QuizQuestion, error) {
	query := `
		SELECT question_id, topic_id, type, difficulty, question, options_json, correct_answer, rubric_json
		FROM questions WHERE course_id = ?`
	args := []interface{}{courseID}

	if len(topicIDs) > 0 {
		query += ` AND topic_id IN (?` + repeatPlaceholder(len(topicIDs)-1) + `)`
		for _, id := range topicIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY topic_id, question_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer closeRows(rows, "questions")

	var questions []domain.QuizQuestion
	for rows.Next() {
		var q domain.QuizQuestion
		var optionsJSON, rubricJSON sql.NullString

		if err := rows.Scan(&q.ID, &q.TopicID, &q.Type, &q.Difficulty, &q.Question,
			&optionsJSON, &q.CorrectAnswer, &rubricJSON); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		if optionsJSON.Valid {
			if err := json.Unmarshal([]byte(optionsJSON.String), &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
			}
		}
		if rubricJSON.Valid {
			if err := json.Unmarshal([]byte(rubricJSON.String), &q.Rubric); err != nil {
				return nil, fmt.Errorf("unmarshal rubric for %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// GetMastery returns all mastery records for a student.
func (s *SQLiteStore) GetMastery(ctx context.Context, studentID string) ([]domain.MasteryRecord, error) {
	query := `
		SELECT student_id, topic_id, score, streak, last_seen
		FROM mastery WHERE student_id = ?`

	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("query mastery: %w", err)
	}
	defer closeRows(rows, "mastery")

	var records []domain.MasteryRecord
	for rows.Next() {
		var m domain.MasteryRecord
		var lastSeen int64
		if err := rows.Scan(&m.StudentID, &m.TopicID, &m.Score, &m.Streak, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan mastery row: %w", err)
		}
		m.LastSeen = time.Unix(lastSeen, 0)
		records = append(records, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mastery: %w", err)
	}
	return records, nil
}

// UpsertMastery creates or updates one student/topic mastery record.
func (s *SQLiteStore) UpsertMastery(ctx context.Context, m *domain.MasteryRecord) error {
	query := `
		INSERT INTO mastery (student_id, topic_id, score, streak, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(student_id, topic_id) DO UPDATE SET
			score = excluded.score,
			streak = excluded.streak,
			last_seen = excluded.last_seen`

	_, err := s.db.ExecContext(ctx, query,
		m.StudentID, m.TopicID, m.Score, m.Streak, m.LastSeen.Unix())
	if err != nil {
		return fmt.Errorf("upsert mastery: %w", err)
	}
	return nil
}

// SaveAttempt records a graded quiz answer.
func (s *SQLiteStore) SaveAttempt(ctx context.Context, a *domain.QuizAttempt) error {
	query := `
		INSERT INTO attempts (attempt_id, session_id, student_id, question_id, answer, correct, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.SessionID, a.StudentID, a.QuestionID, a.Answer,
		boolToInt(a.Correct), a.Score, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}

func marshalNullable(v []string) (interface{}, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func repeatPlaceholder(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		out = append(out, ',', '?')
	}
	return string(out)
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// decodeEmbedding unpacks a little-endian byte blob into a float32 vector.
// Returns nil for empty or malformed blobs.
func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
