package constructor

import (
	"context"
	"testing"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
)

func TestDefaultAction(t *testing.T) {
	chunk := domain.ContentChunk{ID: "c1", Content: "x"}
	topic := domain.Topic{ID: "t1", Title: "T"}
	question := domain.QuizQuestion{ID: "q1", TopicID: "t1"}

	tests := []struct {
		name  string
		state State
		want  string
	}{
		{
			"unprocessed files go to ingestion",
			State{UploadedFiles: []domain.UploadedFile{{ID: "f1"}}},
			ActionDispatchIngestion,
		},
		{
			"chunks without topics go to structure",
			State{
				UploadedFiles:  []domain.UploadedFile{{ID: "f1"}},
				ProcessedFiles: []string{"f1"},
				ContentChunks:  []domain.ContentChunk{chunk},
			},
			ActionDispatchStructure,
		},
		{
			"topics without questions go to quiz",
			State{
				ContentChunks: []domain.ContentChunk{chunk},
				Topics:        []domain.Topic{topic},
			},
			ActionDispatchQuiz,
		},
		{
			"questions but not validated go to validation",
			State{
				Topics:        []domain.Topic{topic},
				QuizQuestions: []domain.QuizQuestion{question},
			},
			ActionDispatchValidate,
		},
		{
			"validated and passed goes to finalize",
			State{
				Topics:           []domain.Topic{topic},
				QuizQuestions:    []domain.QuizQuestion{question},
				Validated:        true,
				ValidationPassed: true,
			},
			ActionFinalize,
		},
		{
			"validated but failed with no pending work collects info",
			State{
				Topics:        []domain.Topic{topic},
				QuizQuestions: []domain.QuizQuestion{question},
				Validated:     true,
			},
			ActionCollectInfo,
		},
		{
			"empty session collects info",
			State{},
			ActionCollectInfo,
		},
		{
			"info collected but no files requests files",
			State{CourseInfo: domain.CourseInfo{Title: "Go basics"}},
			ActionRequestFiles,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultAction(&tt.state); got != tt.want {
				t.Errorf("defaultAction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouteAction_ModelDecision(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"valid action honored", "dispatch_structure", ActionDispatchStructure},
		{"whitespace and case normalized", "  Finalize\n", ActionFinalize},
		{"out-of-vocabulary falls back to state", "reticulate_splines", ActionCollectInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("sess-1", "creator-1", Deps{
				LLM: llm.ClientFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
					return llm.Response{Content: tt.answer}, nil
				}),
			})
			if got := c.routeAction(context.Background()); got != tt.want {
				t.Errorf("routeAction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouteAction_ModelErrorFallsBack(t *testing.T) {
	c := New("sess-1", "creator-1", Deps{
		LLM: llm.ClientFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
			return llm.Response{}, llm.ErrUnavailable
		}),
	})
	if got := c.routeAction(context.Background()); got != ActionCollectInfo {
		t.Errorf("routeAction() = %q, want %q", got, ActionCollectInfo)
	}
}
