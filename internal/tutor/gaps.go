package tutor

import (
	"sort"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// Gap priorities.
const (
	PriorityCritical  = "critical"
	PriorityImportant = "important"
	PriorityMinor     = "minor"
)

// masteryThreshold is the score below which a topic is a knowledge gap.
const masteryThreshold = 0.5

// Gap is one knowledge gap in a student's mastery, annotated with the
// other gaps it blocks through the prerequisite relation.
type Gap struct {
	TopicID  string   `json:"topic_id"`
	Title    string   `json:"title"`
	Mastery  float64  `json:"mastery"`
	Priority string   `json:"priority"`
	Blocks   []string `json:"blocks,omitempty"` // titles of gaps this one blocks
}

// AnalyzeGaps computes the prioritized remediation list: topics below
// the mastery threshold, critical when they are a prerequisite of at
// least one other gap, otherwise ordered by ascending mastery.
// Prerequisites resolve by topic id.
func AnalyzeGaps(topics []domain.Topic, mastery map[string]float64) []Gap {
	byID := make(map[string]domain.Topic, len(topics))
	gapIDs := make(map[string]bool)
	for _, t := range topics {
		byID[t.ID] = t
		if mastery[t.ID] < masteryThreshold {
			gapIDs[t.ID] = true
		}
	}
	if len(gapIDs) == 0 {
		return nil
	}

	// blocks[p] lists gap topics that require gap topic p.
	blocks := make(map[string][]string)
	for _, t := range topics {
		if !gapIDs[t.ID] {
			continue
		}
		for _, prereq := range t.Prerequisites {
			if gapIDs[prereq] {
				blocks[prereq] = append(blocks[prereq], t.Title)
			}
		}
	}

	gaps := make([]Gap, 0, len(gapIDs))
	for id := range gapIDs {
		t := byID[id]
		g := Gap{
			TopicID: id,
			Title:   t.Title,
			Mastery: mastery[id],
			Blocks:  blocks[id],
		}
		switch {
		case len(g.Blocks) > 0:
			g.Priority = PriorityCritical
		case g.Mastery < 0.3:
			g.Priority = PriorityImportant
		default:
			g.Priority = PriorityMinor
		}
		gaps = append(gaps, g)
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		pi, pj := priorityRank(gaps[i].Priority), priorityRank(gaps[j].Priority)
		if pi != pj {
			return pi < pj
		}
		if gaps[i].Mastery != gaps[j].Mastery {
			return gaps[i].Mastery < gaps[j].Mastery
		}
		return gaps[i].TopicID < gaps[j].TopicID
	})
	return gaps
}

func priorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityImportant:
		return 1
	default:
		return 2
	}
}
