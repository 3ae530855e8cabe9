package constructor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
)

const defaultQuestionsPerTopic = 5

// QuizGen generates a question bank topic by topic. Completion is decided
// by an explicit counter comparison, not iterator exhaustion, so a run
// interrupted partway resumes with well-defined remaining work.
type QuizGen struct {
	LLM      llm.Client
	PerTopic int
}

// QuizGenDelta is the state slice a quiz-generation run produces.
type QuizGenDelta struct {
	Questions       []domain.QuizQuestion
	TopicsCompleted int
	TopicsTotal     int
	Complete        bool
	Result          domain.SubAgentResult
}

// Run visits every topic exactly once and accumulates validated
// questions into the bank.
func (p *QuizGen) Run(ctx context.Context, topics []domain.Topic, chunks []domain.ContentChunk) QuizGenDelta {
	delta := QuizGenDelta{TopicsTotal: len(topics)}
	if len(topics) == 0 {
		delta.Result = domain.SubAgentResult{
			Status: domain.ResultFailed,
			Errors: []string{"no topics to generate questions for"},
		}
		return delta
	}

	perTopic := p.PerTopic
	if perTopic <= 0 {
		perTopic = defaultQuestionsPerTopic
	}

	chunksByID := make(map[string]string, len(chunks))
	for _, c := range chunks {
		chunksByID[c.ID] = c.Content
	}

	var errs []string
	for _, topic := range topics {
		questions, err := p.generateForTopic(ctx, topic, chunksByID, perTopic)
		if err != nil {
			errs = append(errs, fmt.Sprintf("topic %q: %v", topic.Title, err))
		}
		delta.Questions = append(delta.Questions, questions...)
		delta.TopicsCompleted++
	}
	delta.Complete = delta.TopicsCompleted == delta.TopicsTotal

	byType := make(map[string]int)
	byDifficulty := make(map[string]int)
	for _, q := range delta.Questions {
		byType[q.Type]++
		byDifficulty[q.Difficulty]++
	}

	status := domain.ResultCompleted
	if len(delta.Questions) == 0 {
		status = domain.ResultFailed
	}
	delta.Result = domain.SubAgentResult{
		Status: status,
		Payload: map[string]any{
			"total_questions":  len(delta.Questions),
			"topics_completed": delta.TopicsCompleted,
			"by_type":          byType,
			"by_difficulty":    byDifficulty,
		},
		Errors: errs,
	}
	return delta
}

// questionPlan distributes a per-topic budget across types (60% multiple
// choice, 25% true/false, 15% short answer) and difficulties (30% easy,
// 50% medium, 20% hard).
type questionPlan struct {
	types        []string
	difficulties []string
}

func planQuestions(n int) questionPlan {
	plan := questionPlan{}
	mc := (n*60 + 50) / 100
	tf := (n*25 + 50) / 100
	if mc+tf > n {
		tf = n - mc
	}
	sa := n - mc - tf
	for i := 0; i < mc; i++ {
		plan.types = append(plan.types, domain.QuestionMultipleChoice)
	}
	for i := 0; i < tf; i++ {
		plan.types = append(plan.types, domain.QuestionTrueFalse)
	}
	for i := 0; i < sa; i++ {
		plan.types = append(plan.types, domain.QuestionShortAnswer)
	}

	easy := (n*30 + 50) / 100
	hard := (n * 20) / 100
	for i := 0; i < n; i++ {
		switch {
		case i < easy:
			plan.difficulties = append(plan.difficulties, domain.DifficultyEasy)
		case i >= n-hard:
			plan.difficulties = append(plan.difficulties, domain.DifficultyHard)
		default:
			plan.difficulties = append(plan.difficulties, domain.DifficultyMedium)
		}
	}
	return plan
}

type generatedQuestion struct {
	Type          string   `json:"type"`
	Difficulty    string   `json:"difficulty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Rubric        []string `json:"rubric"`
}

const quizPrompt = `Write quiz questions for the topic using the material below.
Reply with a JSON array only. Each element:
{"type": "multiple_choice"|"true_false"|"short_answer", "difficulty": "easy"|"medium"|"hard",
 "question": "...", "options": ["...x4"] (multiple_choice only),
 "correct_answer": "...", "rubric": ["required", "terms"] (short_answer only)}.
For true_false the correct_answer must be exactly "true" or "false".`

func (p *QuizGen) generateForTopic(ctx context.Context, topic domain.Topic, chunksByID map[string]string, perTopic int) ([]domain.QuizQuestion, error) {
	plan := planQuestions(perTopic)

	var generated []generatedQuestion
	var genErr error
	if p.LLM != nil {
		generated, genErr = p.generateLLM(ctx, topic, chunksByID, perTopic)
	}

	var out []domain.QuizQuestion
	for i := 0; i < perTopic; i++ {
		wantType := plan.types[i]
		difficulty := plan.difficulties[i]

		var q domain.QuizQuestion
		if g, ok := takeGenerated(&generated, wantType); ok {
			q = domain.QuizQuestion{
				ID:            uuid.NewString(),
				TopicID:       topic.ID,
				Type:          g.Type,
				Difficulty:    g.Difficulty,
				Question:      g.Question,
				Options:       g.Options,
				CorrectAnswer: strings.TrimSpace(g.CorrectAnswer),
				Rubric:        g.Rubric,
			}
			if q.Difficulty == "" {
				q.Difficulty = difficulty
			}
		} else {
			q = fallbackQuestion(topic, wantType, difficulty)
		}

		if err := validateQuestion(&q); err != nil {
			q = fallbackQuestion(topic, wantType, difficulty)
		}
		out = append(out, q)
	}
	return out, genErr
}

func (p *QuizGen) generateLLM(ctx context.Context, topic domain.Topic, chunksByID map[string]string, perTopic int) ([]generatedQuestion, error) {
	var material strings.Builder
	material.WriteString("Topic: " + topic.Title + "\n")
	if topic.Description != "" {
		material.WriteString(topic.Description + "\n")
	}
	for _, id := range topic.ChunkIDs {
		if content, ok := chunksByID[id]; ok {
			material.WriteString("\n" + excerpt(content, 500))
		}
	}

	resp, err := p.LLM.Complete(ctx, llm.Request{
		System: fmt.Sprintf("%s\nGenerate %d questions.", quizPrompt, perTopic),
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: material.String()},
		},
	})
	if err != nil {
		return nil, err
	}

	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(jsonSlice(resp.Content, '[', ']')), &generated); err != nil {
		return nil, fmt.Errorf("unparseable question batch: %w", err)
	}
	return generated, nil
}

// takeGenerated pops the first generated question of the wanted type.
func takeGenerated(pool *[]generatedQuestion, wantType string) (generatedQuestion, bool) {
	for i, g := range *pool {
		if g.Type == wantType {
			*pool = append((*pool)[:i], (*pool)[i+1:]...)
			return g, true
		}
	}
	return generatedQuestion{}, false
}

// validateQuestion checks structural answerability and normalizes the
// question in place. Invalid questions are replaced by the caller.
func validateQuestion(q *domain.QuizQuestion) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("empty question text")
	}
	switch q.Type {
	case domain.QuestionMultipleChoice:
		if len(q.Options) != 4 {
			return fmt.Errorf("multiple choice needs exactly 4 options, got %d", len(q.Options))
		}
		found := 0
		for _, o := range q.Options {
			if strings.EqualFold(strings.TrimSpace(o), q.CorrectAnswer) {
				found++
			}
		}
		if found != 1 {
			return fmt.Errorf("correct answer must match exactly one option")
		}
	case domain.QuestionTrueFalse:
		ans := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
		if ans != "true" && ans != "false" {
			return fmt.Errorf("true/false answer must be \"true\" or \"false\"")
		}
		q.CorrectAnswer = ans
		q.Options = nil
	case domain.QuestionShortAnswer:
		if len(q.Rubric) == 0 {
			// Derive required terms from the reference answer.
			for _, w := range strings.Fields(q.CorrectAnswer) {
				w = strings.ToLower(strings.Trim(w, ".,!?"))
				if len(w) >= 4 {
					q.Rubric = append(q.Rubric, w)
				}
			}
			if len(q.Rubric) == 0 {
				return fmt.Errorf("short answer needs a rubric")
			}
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

// fallbackQuestion produces a deterministic template question when
// generation fails or yields unusable output.
func fallbackQuestion(topic domain.Topic, qType, difficulty string) domain.QuizQuestion {
	q := domain.QuizQuestion{
		ID:         uuid.NewString(),
		TopicID:    topic.ID,
		Type:       qType,
		Difficulty: difficulty,
	}
	switch qType {
	case domain.QuestionTrueFalse:
		q.Question = fmt.Sprintf("True or false: %q is covered in this course.", topic.Title)
		q.CorrectAnswer = "true"
	case domain.QuestionShortAnswer:
		q.Question = fmt.Sprintf("In your own words, explain %s.", topic.Title)
		q.CorrectAnswer = topic.Title
		for _, w := range strings.Fields(strings.ToLower(topic.Title)) {
			if len(w) >= 4 {
				q.Rubric = append(q.Rubric, w)
			}
		}
		if len(q.Rubric) == 0 {
			q.Rubric = []string{strings.ToLower(topic.Title)}
		}
	default:
		q.Type = domain.QuestionMultipleChoice
		q.Question = fmt.Sprintf("Which statement best describes %s?", topic.Title)
		correct := fmt.Sprintf("A concept covered under %s", topic.Title)
		q.Options = []string{
			correct,
			"A topic outside this course",
			"An unrelated administrative detail",
			"None of the above",
		}
		q.CorrectAnswer = correct
	}
	return q
}
