package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	sess := &domain.Session{
		SessionID:      "sess-1",
		OwnerID:        "user-1",
		Kind:           domain.KindConstructor,
		Phase:          "collecting_info",
		Active:         true,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("GetSession returned nil for existing session")
	}
	if got.Kind != domain.KindConstructor || got.Phase != "collecting_info" || !got.Active {
		t.Errorf("got = %+v", got)
	}
	if got.SubjectID != "" {
		t.Errorf("SubjectID = %q, want empty", got.SubjectID)
	}

	got.Phase = "processing_files"
	got.SubjectID = "course-1"
	got.TurnCounter = 3
	if err := repo.UpdateSession(ctx, got); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got2, err := repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession after update: %v", err)
	}
	if got2.Phase != "processing_files" || got2.SubjectID != "course-1" || got2.TurnCounter != 3 {
		t.Errorf("after update = %+v", got2)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	repo := newTestStore(t)
	got, err := repo.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestCheckpointVersions(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	state, version, err := repo.LatestCheckpoint(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if state != nil || version != 0 {
		t.Errorf("empty store: state=%v version=%d", state, version)
	}

	v1, err := repo.PutCheckpoint(ctx, "sess-1", []byte(`{"turn":1}`))
	if err != nil {
		t.Fatalf("PutCheckpoint: %v", err)
	}
	v2, err := repo.PutCheckpoint(ctx, "sess-1", []byte(`{"turn":2}`))
	if err != nil {
		t.Fatalf("PutCheckpoint: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", v1, v2)
	}

	// Another session's versions are independent.
	other, err := repo.PutCheckpoint(ctx, "sess-2", []byte(`{}`))
	if err != nil {
		t.Fatalf("PutCheckpoint other: %v", err)
	}
	if other != 1 {
		t.Errorf("other session first version = %d, want 1", other)
	}

	state, version, err = repo.LatestCheckpoint(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if string(state) != `{"turn":2}` || version != 2 {
		t.Errorf("latest = %s v%d", state, version)
	}
}

func TestExpireIdleSessions(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	stale := &domain.Session{
		SessionID:      "stale",
		OwnerID:        "u",
		Kind:           domain.KindTutor,
		Phase:          "teaching",
		Active:         true,
		CreatedAt:      time.Now().Add(-2 * time.Hour),
		LastActivityAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &domain.Session{
		SessionID:      "fresh",
		OwnerID:        "u",
		Kind:           domain.KindTutor,
		Phase:          "teaching",
		Active:         true,
		CreatedAt:      time.Now(),
		LastActivityAt: time.Now(),
	}
	for _, s := range []*domain.Session{stale, fresh} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	n, err := repo.ExpireIdleSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ExpireIdleSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d sessions, want 1", n)
	}

	got, _ := repo.GetSession(ctx, "stale")
	if got.Active {
		t.Error("stale session still active")
	}
	got, _ = repo.GetSession(ctx, "fresh")
	if !got.Active {
		t.Error("fresh session was expired")
	}
}

func TestChunksWithEmbeddings(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	chunks := []domain.ContentChunk{
		{ID: "c1", CourseID: "course-1", FileID: "f1", Index: 0, Content: "alpha"},
		{ID: "c2", CourseID: "course-1", FileID: "f1", Index: 1, Content: "beta"},
	}
	embeddings := [][]float32{{0.1, 0.2, 0.3}, nil}

	if err := repo.SaveChunks(ctx, chunks, embeddings); err != nil {
		t.Fatalf("SaveChunks: %v", err)
	}

	gotChunks, gotEmb, err := repo.ChunksWithEmbeddings(ctx, "course-1")
	if err != nil {
		t.Fatalf("ChunksWithEmbeddings: %v", err)
	}
	if len(gotChunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(gotChunks))
	}
	if gotChunks[0].Content != "alpha" || gotChunks[1].Content != "beta" {
		t.Errorf("chunks = %+v", gotChunks)
	}
	if len(gotEmb[0]) != 3 || gotEmb[0][1] != 0.2 {
		t.Errorf("embedding = %v", gotEmb[0])
	}
	if gotEmb[1] != nil {
		t.Errorf("nil embedding round-tripped to %v", gotEmb[1])
	}
}

func TestSaveChunks_LengthMismatch(t *testing.T) {
	repo := newTestStore(t)
	err := repo.SaveChunks(context.Background(),
		[]domain.ContentChunk{{ID: "c1", CourseID: "x", FileID: "f"}}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestQuestionBank(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	questions := []domain.QuizQuestion{
		{
			ID: "q1", TopicID: "t1", Type: domain.QuestionMultipleChoice,
			Difficulty: domain.DifficultyEasy, Question: "Pick one",
			Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "b",
		},
		{
			ID: "q2", TopicID: "t2", Type: domain.QuestionShortAnswer,
			Difficulty: domain.DifficultyHard, Question: "Explain",
			CorrectAnswer: "because", Rubric: []string{"cause", "effect"},
		},
	}
	if err := repo.SaveQuestions(ctx, "course-1", questions); err != nil {
		t.Fatalf("SaveQuestions: %v", err)
	}

	all, err := repo.ListQuestions(ctx, "course-1", nil)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
	if len(all[0].Options) != 4 || all[0].Options[1] != "b" {
		t.Errorf("options = %v", all[0].Options)
	}
	if len(all[1].Rubric) != 2 {
		t.Errorf("rubric = %v", all[1].Rubric)
	}

	scoped, err := repo.ListQuestions(ctx, "course-1", []string{"t2"})
	if err != nil {
		t.Fatalf("ListQuestions scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != "q2" {
		t.Errorf("scoped = %+v", scoped)
	}
}

func TestTopicGraphRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	topics := []domain.Topic{
		{ID: "t1", UnitID: "u1", Title: "Basics", Order: 0},
		{ID: "t2", UnitID: "u1", Title: "Advanced", Description: "builds on basics",
			Order: 1, Prerequisites: []string{"t1"}},
	}
	if err := repo.SaveTopics(ctx, "course-1", topics); err != nil {
		t.Fatalf("SaveTopics: %v", err)
	}

	got, err := repo.ListTopics(ctx, "course-1")
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if len(got[1].Prerequisites) != 1 || got[1].Prerequisites[0] != "t1" {
		t.Errorf("prerequisites = %v", got[1].Prerequisites)
	}

	// A re-save replaces the graph.
	if err := repo.SaveTopics(ctx, "course-1", topics[:1]); err != nil {
		t.Fatalf("SaveTopics replace: %v", err)
	}
	got, _ = repo.ListTopics(ctx, "course-1")
	if len(got) != 1 {
		t.Errorf("after replace len = %d, want 1", len(got))
	}
}

func TestMasteryUpsert(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	m := &domain.MasteryRecord{
		StudentID: "s1", TopicID: "t1", Score: 0.4, Streak: 1,
		LastSeen: time.Now(),
	}
	if err := repo.UpsertMastery(ctx, m); err != nil {
		t.Fatalf("UpsertMastery: %v", err)
	}

	m.Score = 0.5
	m.Streak = 2
	if err := repo.UpsertMastery(ctx, m); err != nil {
		t.Fatalf("UpsertMastery update: %v", err)
	}

	records, err := repo.GetMastery(ctx, "s1")
	if err != nil {
		t.Fatalf("GetMastery: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Score != 0.5 || records[0].Streak != 2 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{1.5, -2.25, 0, 3.14159}
	out := decodeEmbedding(encodeEmbedding(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if decodeEmbedding(nil) != nil {
		t.Error("decode nil should be nil")
	}
	if decodeEmbedding([]byte{1, 2, 3}) != nil {
		t.Error("decode malformed should be nil")
	}
}
