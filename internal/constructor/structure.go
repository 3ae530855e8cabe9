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

const topicsPerUnit = 3
const chunksPerFallbackTopic = 5

// Structure derives a course hierarchy from content chunks: detect
// topics, group them into units, identify prerequisites, validate, and
// finalize. A prerequisite cycle is a critical error and halts
// finalization rather than being auto-resolved.
type Structure struct {
	LLM llm.Client
}

// StructureDelta is the state slice a structure run produces. Units and
// Topics are only populated when Finalized is true.
type StructureDelta struct {
	Units     []domain.Unit
	Topics    []domain.Topic
	Finalized bool
	Result    domain.SubAgentResult
}

// Run executes the pipeline stages in order.
func (p *Structure) Run(ctx context.Context, chunks []domain.ContentChunk) StructureDelta {
	if len(chunks) == 0 {
		return StructureDelta{Result: domain.SubAgentResult{
			Status: domain.ResultFailed,
			Errors: []string{"no content chunks to structure"},
		}}
	}

	topics := p.detectTopics(ctx, chunks)
	units := groupIntoUnits(topics)
	p.identifyPrerequisites(ctx, topics)

	errs, warnings := validateStructure(topics)
	quality := 1.0 - 0.5*float64(len(errs)) - 0.1*float64(len(warnings))
	if quality < 0 {
		quality = 0
	}

	payload := map[string]any{
		"topics_detected": len(topics),
		"units_created":   len(units),
		"quality_score":   quality,
		"warnings":        warnings,
	}

	if len(errs) > 0 {
		// Surfaced for correction; the hierarchy is not committed.
		return StructureDelta{Result: domain.SubAgentResult{
			Status:  domain.ResultFailed,
			Payload: payload,
			Errors:  errs,
		}}
	}

	return StructureDelta{
		Units:     units,
		Topics:    topics,
		Finalized: true,
		Result: domain.SubAgentResult{
			Status:  domain.ResultCompleted,
			Payload: payload,
		},
	}
}

type detectedTopic struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChunkIndexes []int  `json:"chunk_indexes"`
}

const detectTopicsPrompt = `Identify the distinct teachable topics in the course material below.
Reply with a JSON array only: [{"title": "...", "description": "...", "chunk_indexes": [0, 1]}].
chunk_indexes references the numbered excerpts.`

// detectTopics labels topics over the chunks, via the model when
// available, falling back to deterministic grouping.
func (p *Structure) detectTopics(ctx context.Context, chunks []domain.ContentChunk) []domain.Topic {
	if p.LLM != nil {
		if topics := p.detectTopicsLLM(ctx, chunks); len(topics) > 0 {
			return topics
		}
	}
	return fallbackTopics(chunks)
}

func (p *Structure) detectTopicsLLM(ctx context.Context, chunks []domain.ContentChunk) []domain.Topic {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n\n", i, excerpt(c.Content, 300))
	}
	resp, err := p.LLM.Complete(ctx, llm.Request{
		System:   detectTopicsPrompt,
		Messages: []domain.Message{{Role: domain.RoleUser, Content: b.String()}},
	})
	if err != nil {
		return nil
	}

	var detected []detectedTopic
	if err := json.Unmarshal([]byte(jsonSlice(resp.Content, '[', ']')), &detected); err != nil {
		return nil
	}

	topics := make([]domain.Topic, 0, len(detected))
	for i, d := range detected {
		if d.Title == "" {
			continue
		}
		t := domain.Topic{
			ID:          uuid.NewString(),
			Title:       d.Title,
			Description: d.Description,
			Order:       i,
		}
		for _, idx := range d.ChunkIndexes {
			if idx >= 0 && idx < len(chunks) {
				t.ChunkIDs = append(t.ChunkIDs, chunks[idx].ID)
			}
		}
		topics = append(topics, t)
	}
	return topics
}

// fallbackTopics groups consecutive chunks into fixed-size topics.
func fallbackTopics(chunks []domain.ContentChunk) []domain.Topic {
	var topics []domain.Topic
	for i := 0; i < len(chunks); i += chunksPerFallbackTopic {
		end := i + chunksPerFallbackTopic
		if end > len(chunks) {
			end = len(chunks)
		}
		t := domain.Topic{
			ID:    uuid.NewString(),
			Title: fmt.Sprintf("Topic %d: %s", len(topics)+1, excerpt(chunks[i].Content, 40)),
			Order: len(topics),
		}
		for _, c := range chunks[i:end] {
			t.ChunkIDs = append(t.ChunkIDs, c.ID)
		}
		topics = append(topics, t)
	}
	return topics
}

// groupIntoUnits buckets ordered topics into units and stamps unit ids
// back onto the topics.
func groupIntoUnits(topics []domain.Topic) []domain.Unit {
	var units []domain.Unit
	for i := 0; i < len(topics); i += topicsPerUnit {
		end := i + topicsPerUnit
		if end > len(topics) {
			end = len(topics)
		}
		u := domain.Unit{
			ID:    uuid.NewString(),
			Title: fmt.Sprintf("Unit %d", len(units)+1),
			Order: len(units),
		}
		for j := i; j < end; j++ {
			topics[j].UnitID = u.ID
			u.TopicIDs = append(u.TopicIDs, topics[j].ID)
		}
		units = append(units, u)
	}
	return units
}

type prereqEdge struct {
	Topic    string   `json:"topic"`
	Requires []string `json:"requires"`
}

const prereqPrompt = `Given these course topics in order, identify prerequisite relationships.
Reply with a JSON array only: [{"topic": "title", "requires": ["title", ...]}].
Only include real conceptual dependencies.`

// identifyPrerequisites fills Topic.Prerequisites. The model proposes
// edges resolved by title onto stable topic ids; without a model each
// topic depends on its predecessor. Lookups are by id, never by position,
// since unit grouping reorders topic lists.
func (p *Structure) identifyPrerequisites(ctx context.Context, topics []domain.Topic) {
	if p.LLM != nil && p.prerequisitesLLM(ctx, topics) {
		return
	}
	for i := range topics {
		if i > 0 {
			topics[i].Prerequisites = []string{topics[i-1].ID}
		}
	}
}

func (p *Structure) prerequisitesLLM(ctx context.Context, topics []domain.Topic) bool {
	byTitle := make(map[string]*domain.Topic, len(topics))
	var b strings.Builder
	for i := range topics {
		byTitle[strings.ToLower(topics[i].Title)] = &topics[i]
		b.WriteString(topics[i].Title)
		b.WriteString("\n")
	}

	resp, err := p.LLM.Complete(ctx, llm.Request{
		System:   prereqPrompt,
		Messages: []domain.Message{{Role: domain.RoleUser, Content: b.String()}},
	})
	if err != nil {
		return false
	}

	var edges []prereqEdge
	if err := json.Unmarshal([]byte(jsonSlice(resp.Content, '[', ']')), &edges); err != nil {
		return false
	}

	applied := false
	for _, e := range edges {
		t, ok := byTitle[strings.ToLower(e.Topic)]
		if !ok {
			continue
		}
		for _, req := range e.Requires {
			if dep, ok := byTitle[strings.ToLower(req)]; ok && dep.ID != t.ID {
				t.Prerequisites = append(t.Prerequisites, dep.ID)
				applied = true
			}
		}
	}
	return applied
}

// validateStructure checks the prerequisite relation for cycles
// (critical) and for orphaned or unreachable topics (warnings).
func validateStructure(topics []domain.Topic) (errs, warnings []string) {
	byID := make(map[string]*domain.Topic, len(topics))
	for i := range topics {
		byID[topics[i].ID] = &topics[i]
	}

	// Cycle detection: DFS with three-color marking.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(topics))
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range byID[id].Prerequisites {
			if _, ok := byID[dep]; !ok {
				continue
			}
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for _, t := range topics {
		if color[t.ID] == white && visit(t.ID) {
			errs = append(errs, fmt.Sprintf("prerequisite cycle involving topic %q", t.Title))
			break
		}
	}

	for _, t := range topics {
		if len(t.ChunkIDs) == 0 {
			warnings = append(warnings, fmt.Sprintf("topic %q has no linked content", t.Title))
		}
	}

	// Reachability: a topic is reachable once all its known prerequisites
	// are, starting from topics with none. Fixed-point iteration.
	if len(errs) == 0 {
		reached := make(map[string]bool, len(topics))
		for changed := true; changed; {
			changed = false
			for _, t := range topics {
				if reached[t.ID] {
					continue
				}
				ok := true
				for _, dep := range t.Prerequisites {
					if _, known := byID[dep]; known && !reached[dep] {
						ok = false
						break
					}
				}
				if ok {
					reached[t.ID] = true
					changed = true
				}
			}
		}
		for _, t := range topics {
			if !reached[t.ID] {
				warnings = append(warnings, fmt.Sprintf("topic %q is unreachable from the course start", t.Title))
			}
		}
	}

	return errs, warnings
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if line := strings.IndexByte(s, '\n'); line >= 0 {
		s = s[:line]
	}
	if len(s) > n {
		s = s[:n]
	}
	return s
}

// jsonSlice extracts the outermost open..close span from model output,
// tolerating surrounding prose or code fences.
func jsonSlice(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
