package constructor

import (
	"fmt"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

const passThreshold = 0.8

// minQuestionsPerTopic is the quiz sufficiency floor.
const minQuestionsPerTopic = 3

// ValidationDelta is the outcome of a validation run.
type ValidationDelta struct {
	Errors    []string
	Warnings  []string
	Readiness float64
	Passed    bool
	Result    domain.SubAgentResult
}

// Validate runs the three readiness checks in fixed order, combining
// their results without short-circuiting: content completeness,
// structural soundness, quiz sufficiency.
func Validate(topics []domain.Topic, units []domain.Unit, chunks []domain.ContentChunk, questions []domain.QuizQuestion) ValidationDelta {
	var errs, warnings []string

	// Check 1: content completeness. A topic without any material is
	// critical.
	chunkCount := make(map[string]int, len(topics))
	for _, t := range topics {
		chunkCount[t.ID] = len(t.ChunkIDs)
	}
	for _, c := range chunks {
		if c.TopicID != "" {
			chunkCount[c.TopicID]++
		}
	}
	for _, t := range topics {
		if chunkCount[t.ID] == 0 {
			errs = append(errs, fmt.Sprintf("topic %q has no associated material", t.Title))
		}
	}
	if len(topics) == 0 {
		errs = append(errs, "course has no topics")
	}

	// Check 2: structural soundness. Cycles and unreachable topics are
	// critical at publish time.
	structErrs, structWarnings := validateStructure(topics)
	errs = append(errs, structErrs...)
	errs = append(errs, structWarnings...)
	if len(units) == 0 && len(topics) > 0 {
		warnings = append(warnings, "topics are not grouped into units")
	}

	// Check 3: quiz sufficiency. Fewer than three questions per topic or
	// a single-difficulty bank is critical.
	questionsByTopic := make(map[string]int, len(topics))
	difficulties := make(map[string]bool)
	for _, q := range questions {
		questionsByTopic[q.TopicID]++
		difficulties[q.Difficulty] = true
	}
	for _, t := range topics {
		if n := questionsByTopic[t.ID]; n < minQuestionsPerTopic {
			errs = append(errs, fmt.Sprintf("topic %q has %d questions, need at least %d", t.Title, n, minQuestionsPerTopic))
		}
	}
	if len(questions) > 0 && len(difficulties) < 2 {
		errs = append(errs, "question bank has a degenerate difficulty spread")
	}

	readiness := readinessScore(len(errs), len(warnings), len(topics), len(chunks), len(questions))
	passed := len(errs) == 0 && readiness >= passThreshold

	return ValidationDelta{
		Errors:    errs,
		Warnings:  warnings,
		Readiness: readiness,
		Passed:    passed,
		Result: domain.SubAgentResult{
			Status: domain.ResultCompleted,
			Payload: map[string]any{
				"passed":          passed,
				"readiness_score": readiness,
				"errors":          errs,
				"warnings":        warnings,
			},
		},
	}
}

// readinessScore aggregates the checks into [0,1]: a capped penalty per
// error and warning, plus small bonuses for question and content depth.
func readinessScore(errs, warnings, topics, chunks, questions int) float64 {
	errPenalty := 0.1 * float64(errs)
	if errPenalty > 0.5 {
		errPenalty = 0.5
	}
	warnPenalty := 0.05 * float64(warnings)
	if warnPenalty > 0.3 {
		warnPenalty = 0.3
	}

	score := 1.0 - errPenalty - warnPenalty
	if topics > 0 && questions >= 3*topics {
		score += 0.05
	}
	if topics > 0 && chunks >= 5*topics {
		score += 0.05
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
