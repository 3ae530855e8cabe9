// Package domain holds the shared data model: sessions, conversation
// messages, and the course vocabulary used by both coordinators.
package domain

import (
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is the canonical conversation entry. Histories restored from
// checkpoints or received over the wire may arrive as loose maps; the
// normalizer functions below accept both shapes.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MessageRole extracts the role from a message of any accepted shape.
// Unrecognized shapes default to "user" rather than failing.
func MessageRole(msg any) string {
	switch m := msg.(type) {
	case Message:
		return m.Role
	case *Message:
		if m != nil {
			return m.Role
		}
	case map[string]any:
		if r, ok := m["role"].(string); ok {
			return r
		}
	case map[string]string:
		if r, ok := m["role"]; ok {
			return r
		}
	}
	return RoleUser
}

// MessageContent extracts the text content from a message of any accepted
// shape, stringifying best-effort. It never returns an error.
func MessageContent(msg any) string {
	switch m := msg.(type) {
	case Message:
		return m.Content
	case *Message:
		if m != nil {
			return m.Content
		}
		return ""
	case map[string]any:
		if c, ok := m["content"]; ok {
			return stringify(c)
		}
		return ""
	case map[string]string:
		return m["content"]
	case string:
		return m
	}
	return stringify(msg)
}

// IsAssistantMessage reports whether a message of any accepted shape was
// produced by the assistant.
func IsAssistantMessage(msg any) bool {
	return MessageRole(msg) == RoleAssistant
}

// AppendUserMessage returns a new history with a user message appended.
// The input slice is not modified.
func AppendUserMessage(history []Message, content string) []Message {
	out := make([]Message, len(history), len(history)+1)
	copy(out, history)
	return append(out, Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// AppendAssistantMessage returns a new history with an assistant message
// appended. The input slice is not modified.
func AppendAssistantMessage(history []Message, content string) []Message {
	out := make([]Message, len(history), len(history)+1)
	copy(out, history)
	return append(out, Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// LatestAssistantContent returns the content of the most recent assistant
// message in the history, or "" if there is none.
func LatestAssistantContent(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

// LatestUserContent returns the content of the most recent user message in
// the history, or "" if there is none.
func LatestUserContent(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// NormalizeMessages converts a history of mixed shapes into canonical
// messages. Elements that carry no role default to "user".
func NormalizeMessages(raw []any) []Message {
	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		out = append(out, Message{
			Role:    MessageRole(m),
			Content: MessageContent(m),
		})
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
