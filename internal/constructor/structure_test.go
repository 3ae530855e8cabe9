package constructor

import (
	"context"
	"strings"
	"testing"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/llm"
)

func chunkFixture(n int) []domain.ContentChunk {
	chunks := make([]domain.ContentChunk, n)
	for i := range chunks {
		chunks[i] = domain.ContentChunk{
			ID:      "chunk-" + string(rune('a'+i)),
			Content: "material " + strings.Repeat("x", i),
			Index:   i,
		}
	}
	return chunks
}

func TestStructure_DeterministicRun(t *testing.T) {
	p := &Structure{}
	delta := p.Run(context.Background(), chunkFixture(7))

	if !delta.Finalized {
		t.Fatalf("not finalized: %v", delta.Result.Errors)
	}
	if len(delta.Topics) != 2 {
		t.Fatalf("topics = %d, want 2 groups of up to %d chunks", len(delta.Topics), chunksPerFallbackTopic)
	}
	if len(delta.Units) != 1 {
		t.Errorf("units = %d, want 1", len(delta.Units))
	}
	// Linear prerequisite chain by topic id.
	if len(delta.Topics[0].Prerequisites) != 0 {
		t.Errorf("first topic has prerequisites %v", delta.Topics[0].Prerequisites)
	}
	if len(delta.Topics[1].Prerequisites) != 1 || delta.Topics[1].Prerequisites[0] != delta.Topics[0].ID {
		t.Errorf("second topic prerequisites = %v", delta.Topics[1].Prerequisites)
	}
	for _, topic := range delta.Topics {
		if topic.UnitID != delta.Units[0].ID {
			t.Errorf("topic %q not assigned to the unit", topic.Title)
		}
	}
}

func TestStructure_EmptyInput(t *testing.T) {
	p := &Structure{}
	delta := p.Run(context.Background(), nil)
	if delta.Finalized || delta.Result.Status != domain.ResultFailed {
		t.Errorf("delta = %+v, want failed and not finalized", delta.Result)
	}
}

// A model proposing a prerequisite cycle must halt finalization with a
// critical error rather than auto-resolving it.
func TestStructure_CycleHaltsFinalize(t *testing.T) {
	model := llm.ClientFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		if strings.Contains(req.System, "teachable topics") {
			return llm.Response{Content: `[
				{"title": "A", "description": "", "chunk_indexes": [0]},
				{"title": "B", "description": "", "chunk_indexes": [1]}
			]`}, nil
		}
		return llm.Response{Content: `[
			{"topic": "A", "requires": ["B"]},
			{"topic": "B", "requires": ["A"]}
		]`}, nil
	})

	p := &Structure{LLM: model}
	delta := p.Run(context.Background(), chunkFixture(2))

	if delta.Finalized {
		t.Fatal("cycle was finalized instead of halting")
	}
	if delta.Result.Status != domain.ResultFailed {
		t.Errorf("status = %q, want failed", delta.Result.Status)
	}
	found := false
	for _, e := range delta.Result.Errors {
		if strings.Contains(e, "cycle") {
			found = true
		}
	}
	if !found {
		t.Errorf("no cycle error in %v", delta.Result.Errors)
	}
	if len(delta.Topics) != 0 {
		t.Errorf("topics committed despite halt: %d", len(delta.Topics))
	}
}

func TestValidateStructure_Warnings(t *testing.T) {
	topics := []domain.Topic{
		{ID: "a", Title: "A", ChunkIDs: []string{"c1"}},
		{ID: "b", Title: "B"},                                   // orphan, no content
		{ID: "c", Title: "C", Prerequisites: []string{"ghost"}}, // unknown prereq ignored
	}
	errs, warnings := validateStructure(topics)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(warnings) == 0 {
		t.Fatal("expected an orphan warning")
	}
}

func TestValidateStructure_Unreachable(t *testing.T) {
	topics := []domain.Topic{
		{ID: "a", Title: "A", ChunkIDs: []string{"c"}},
		{ID: "b", Title: "B", ChunkIDs: []string{"c"}, Prerequisites: []string{"a"}},
	}
	errs, warnings := validateStructure(topics)
	if len(errs) != 0 || len(warnings) != 0 {
		t.Fatalf("clean chain flagged: errs=%v warnings=%v", errs, warnings)
	}
}
