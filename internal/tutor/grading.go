package tutor

import (
	"fmt"
	"strings"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// shortAnswerThreshold is the rubric match fraction at which a short
// answer counts as correct.
const shortAnswerThreshold = 0.6

// GradeResult is the outcome of grading one answer.
type GradeResult struct {
	Correct  bool
	Score    float64
	Feedback string
}

// Grade compares an answer against the question's recorded solution.
// Grading is deterministic: exact case-insensitive match for multiple
// choice and true/false, rubric keyword containment for short answers.
// No model call is involved.
func Grade(q domain.QuizQuestion, answer string) GradeResult {
	answer = strings.TrimSpace(answer)

	switch q.Type {
	case domain.QuestionShortAnswer:
		return gradeShortAnswer(q, answer)
	default:
		correct := strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))
		score := 0.0
		if correct {
			score = 1.0
		}
		return GradeResult{
			Correct:  correct,
			Score:    score,
			Feedback: feedback(correct, q.CorrectAnswer),
		}
	}
}

func gradeShortAnswer(q domain.QuizQuestion, answer string) GradeResult {
	terms := q.Rubric
	if len(terms) == 0 {
		terms = strings.Fields(q.CorrectAnswer)
	}
	if len(terms) == 0 {
		return GradeResult{Feedback: "This question has no grading rubric."}
	}

	lower := strings.ToLower(answer)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(term))) {
			matched++
		}
	}
	score := float64(matched) / float64(len(terms))
	correct := score >= shortAnswerThreshold

	fb := feedback(correct, q.CorrectAnswer)
	if !correct && matched > 0 {
		fb = fmt.Sprintf("Partially there: you covered %d of %d key points. A full answer mentions: %s.",
			matched, len(terms), q.CorrectAnswer)
	}
	return GradeResult{Correct: correct, Score: score, Feedback: fb}
}

func feedback(correct bool, correctAnswer string) string {
	if correct {
		return "Correct! Well done."
	}
	return fmt.Sprintf("Not quite. The correct answer is: %s.", correctAnswer)
}
