package tutor

import (
	"testing"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

func TestGrade_MultipleChoice(t *testing.T) {
	q := domain.QuizQuestion{
		Type:          domain.QuestionMultipleChoice,
		CorrectAnswer: "The stack",
		Options:       []string{"The heap", "The stack", "A register", "The queue"},
	}

	tests := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"exact", "The stack", true},
		{"case mismatch", "the STACK", true},
		{"surrounding whitespace", "  The stack  ", true},
		{"wrong option", "The heap", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Grade(q, tt.answer)
			if res.Correct != tt.correct {
				t.Errorf("Grade(%q).Correct = %v, want %v", tt.answer, res.Correct, tt.correct)
			}
			wantScore := 0.0
			if tt.correct {
				wantScore = 1.0
			}
			if res.Score != wantScore {
				t.Errorf("Grade(%q).Score = %v, want %v", tt.answer, res.Score, wantScore)
			}
		})
	}
}

func TestGrade_TrueFalseCaseInsensitive(t *testing.T) {
	q := domain.QuizQuestion{Type: domain.QuestionTrueFalse, CorrectAnswer: "true"}

	if res := Grade(q, "True"); !res.Correct {
		t.Errorf("case-mismatched %q graded incorrect: %+v", "True", res)
	}
	if res := Grade(q, "false"); res.Correct {
		t.Errorf("%q graded correct against %q", "false", q.CorrectAnswer)
	}
}

func TestGrade_ShortAnswerRubric(t *testing.T) {
	q := domain.QuizQuestion{
		Type:          domain.QuestionShortAnswer,
		CorrectAnswer: "Photosynthesis converts sunlight into chemical energy",
		Rubric:        []string{"sunlight", "chemical", "energy", "chlorophyll", "glucose"},
	}

	tests := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"all terms", "Plants use sunlight and chlorophyll to produce glucose, storing chemical energy", true},
		{"three of five", "Sunlight becomes chemical energy", true},
		{"two of five", "It's about sunlight and energy", false},
		{"nothing relevant", "No idea", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Grade(q, tt.answer)
			if res.Correct != tt.correct {
				t.Errorf("Grade(%q) = %+v, want correct=%v", tt.answer, res, tt.correct)
			}
		})
	}
}

func TestGrade_ShortAnswerPartialScore(t *testing.T) {
	q := domain.QuizQuestion{
		Type:   domain.QuestionShortAnswer,
		Rubric: []string{"alpha", "beta", "gamma", "delta"},
	}
	res := Grade(q, "alpha and beta")
	if res.Correct {
		t.Error("2 of 4 terms graded correct")
	}
	if res.Score != 0.5 {
		t.Errorf("Score = %v, want 0.5", res.Score)
	}
}
