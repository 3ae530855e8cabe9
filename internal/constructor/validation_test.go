package constructor

import (
	"math"
	"testing"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

func readyCourse() ([]domain.Topic, []domain.Unit, []domain.ContentChunk, []domain.QuizQuestion) {
	topics := []domain.Topic{
		{ID: "t1", Title: "Basics", ChunkIDs: []string{"c1", "c2", "c3", "c4", "c5"}},
		{ID: "t2", Title: "Advanced", ChunkIDs: []string{"c6", "c7", "c8", "c9", "c10"}, Prerequisites: []string{"t1"}},
	}
	units := []domain.Unit{{ID: "u1", Title: "Unit 1", TopicIDs: []string{"t1", "t2"}}}

	var chunks []domain.ContentChunk
	for i := 0; i < 10; i++ {
		id := "c" + string(rune('1'+i))
		topicID := "t1"
		if i >= 5 {
			topicID = "t2"
		}
		chunks = append(chunks, domain.ContentChunk{ID: id, TopicID: topicID, Content: "x"})
	}

	var questions []domain.QuizQuestion
	difficulties := []string{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}
	for _, tid := range []string{"t1", "t2"} {
		for i := 0; i < 3; i++ {
			questions = append(questions, domain.QuizQuestion{
				ID: tid + "-q" + string(rune('1'+i)), TopicID: tid,
				Type: domain.QuestionTrueFalse, Difficulty: difficulties[i],
				Question: "Q?", CorrectAnswer: "true",
			})
		}
	}
	return topics, units, chunks, questions
}

func TestValidate_ReadyCoursePasses(t *testing.T) {
	topics, units, chunks, questions := readyCourse()
	delta := Validate(topics, units, chunks, questions)

	if len(delta.Errors) != 0 {
		t.Fatalf("errors: %v", delta.Errors)
	}
	if !delta.Passed {
		t.Errorf("passed = false, readiness = %v", delta.Readiness)
	}
	if delta.Readiness < passThreshold {
		t.Errorf("readiness = %v, want >= %v", delta.Readiness, passThreshold)
	}
}

// A topic with zero materials always fails, regardless of quiz and
// structure scores.
func TestValidate_TopicWithoutMaterialFails(t *testing.T) {
	topics, units, chunks, questions := readyCourse()
	topics = append(topics, domain.Topic{ID: "t3", Title: "Empty"})
	for i := 0; i < 3; i++ {
		questions = append(questions, domain.QuizQuestion{
			ID: "t3-q" + string(rune('1'+i)), TopicID: "t3",
			Type: domain.QuestionTrueFalse,
			Difficulty: []string{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}[i],
			Question:   "Q?", CorrectAnswer: "false",
		})
	}

	delta := Validate(topics, units, chunks, questions)
	if delta.Passed {
		t.Fatal("course with a material-less topic passed validation")
	}
	if len(delta.Errors) == 0 {
		t.Fatal("no critical errors recorded")
	}
}

func TestValidate_InsufficientQuiz(t *testing.T) {
	topics, units, chunks, questions := readyCourse()
	// Strip t2 down to two questions.
	var kept []domain.QuizQuestion
	removed := 0
	for _, q := range questions {
		if q.TopicID == "t2" && removed == 0 {
			removed++
			continue
		}
		kept = append(kept, q)
	}

	delta := Validate(topics, units, chunks, kept)
	if delta.Passed {
		t.Fatal("passed with under-quizzed topic")
	}
}

func TestValidate_DegenerateDifficulty(t *testing.T) {
	topics, units, chunks, questions := readyCourse()
	for i := range questions {
		questions[i].Difficulty = domain.DifficultyEasy
	}
	delta := Validate(topics, units, chunks, questions)
	if delta.Passed {
		t.Fatal("passed with single-difficulty bank")
	}
}

func TestReadinessScore(t *testing.T) {
	tests := []struct {
		name                               string
		errs, warnings, topics, chunks, qs int
		want                               float64
	}{
		{"clean with bonuses", 0, 0, 2, 10, 6, 1.0},
		{"error penalty capped", 20, 0, 0, 0, 0, 0.5},
		{"warning penalty capped", 0, 20, 0, 0, 0, 0.7},
		{"one error", 1, 0, 0, 0, 0, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readinessScore(tt.errs, tt.warnings, tt.topics, tt.chunks, tt.qs)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("readinessScore() = %v, want %v", got, tt.want)
			}
		})
	}
}
