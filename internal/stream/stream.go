// Package stream defines the turn input/output events and the sinks they
// are delivered through. Turn execution writes events to a Sink; whether
// they go out incrementally over a websocket or are buffered for a
// synchronous HTTP reply is the transport's concern only.
package stream

import "sync"

// Input event types (client to server).
const (
	InputMessage    = "message"
	InputQuizAnswer = "quiz_answer"
	InputUpload     = "upload"
)

// Output event types (server to client).
const (
	EventToken         = "token"
	EventStatus        = "status"
	EventQuiz          = "quiz"
	EventQuizResult    = "quiz_result"
	EventValidation    = "validation"
	EventMasteryUpdate = "mastery_update"
	EventError         = "error"
	EventMessage       = "message"
)

// Input is one client turn input.
type Input struct {
	Type       string   `json:"type"`
	Message    string   `json:"message,omitempty"`
	QuestionID string   `json:"question_id,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	FileIDs    []string `json:"file_ids,omitempty"`
}

// Text returns the user-visible text of the input: the message body, or
// the answer for quiz answers.
func (in Input) Text() string {
	if in.Type == InputQuizAnswer {
		return in.Answer
	}
	return in.Message
}

// Event is one ordered output event of a turn.
type Event struct {
	Type     string         `json:"type"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Sink receives turn output events in order.
type Sink interface {
	Send(ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event) error

// Send implements Sink.
func (f SinkFunc) Send(ev Event) error { return f(ev) }

// Discard drops every event. Used when nobody is listening.
var Discard Sink = SinkFunc(func(Event) error { return nil })

// Buffer collects events for the synchronous fallback path. Safe for
// concurrent use.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Send implements Sink.
func (b *Buffer) Send(ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

// Events returns a copy of the collected events in delivery order.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Text assembles the complete assistant text from token and message
// events, in order.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []byte
	for _, ev := range b.events {
		switch ev.Type {
		case EventToken, EventMessage:
			out = append(out, ev.Content...)
		}
	}
	return string(out)
}

// Status builds a status event for a coordinator state change.
func Status(phase string, progress float64) Event {
	return Event{
		Type: EventStatus,
		Metadata: map[string]any{
			"phase":    phase,
			"progress": progress,
		},
	}
}

// Error builds a user-visible error event.
func Error(msg string) Event {
	return Event{Type: EventError, Content: msg}
}

// tokenChunk is the streamed token granularity, in runes.
const tokenChunk = 10

// Tokens sends text to the sink as ordered token events carrying
// is_first/is_last markers and the given stream id. Empty text still
// produces one event so clients always observe a complete stream.
func Tokens(sink Sink, streamID, text string) error {
	runes := []rune(text)
	if len(runes) == 0 {
		return sink.Send(tokenEvent(streamID, "", true, true))
	}
	for i := 0; i < len(runes); i += tokenChunk {
		end := i + tokenChunk
		if end > len(runes) {
			end = len(runes)
		}
		ev := tokenEvent(streamID, string(runes[i:end]), i == 0, end == len(runes))
		if err := sink.Send(ev); err != nil {
			return err
		}
	}
	return nil
}

func tokenEvent(streamID, content string, first, last bool) Event {
	return Event{
		Type:    EventToken,
		Content: content,
		Metadata: map[string]any{
			"is_first":  first,
			"is_last":   last,
			"stream_id": streamID,
		},
	}
}
