package stream

import "testing"

func TestTokens_OrderAndMarkers(t *testing.T) {
	var buf Buffer
	text := "this is a longer response that spans several chunks"
	if err := Tokens(&buf, "s1", text); err != nil {
		t.Fatalf("Tokens: %v", err)
	}

	events := buf.Events()
	if len(events) < 2 {
		t.Fatalf("expected multiple token events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Type != EventToken {
			t.Fatalf("event %d type = %q", i, ev.Type)
		}
		first := ev.Metadata["is_first"].(bool)
		last := ev.Metadata["is_last"].(bool)
		if first != (i == 0) {
			t.Errorf("event %d is_first = %v", i, first)
		}
		if last != (i == len(events)-1) {
			t.Errorf("event %d is_last = %v", i, last)
		}
		if ev.Metadata["stream_id"] != "s1" {
			t.Errorf("event %d stream_id = %v", i, ev.Metadata["stream_id"])
		}
	}

	if buf.Text() != text {
		t.Errorf("reassembled %q, want %q", buf.Text(), text)
	}
}

func TestTokens_Empty(t *testing.T) {
	var buf Buffer
	if err := Tokens(&buf, "s1", ""); err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	events := buf.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if !events[0].Metadata["is_first"].(bool) || !events[0].Metadata["is_last"].(bool) {
		t.Errorf("markers = %+v", events[0].Metadata)
	}
}

func TestInput_Text(t *testing.T) {
	msg := Input{Type: InputMessage, Message: "hello"}
	if msg.Text() != "hello" {
		t.Errorf("message text = %q", msg.Text())
	}
	ans := Input{Type: InputQuizAnswer, Answer: "b"}
	if ans.Text() != "b" {
		t.Errorf("answer text = %q", ans.Text())
	}
}

func TestBuffer_TextSkipsNonText(t *testing.T) {
	var buf Buffer
	_ = buf.Send(Status("teaching", 0.5))
	_ = buf.Send(Event{Type: EventMessage, Content: "hi "})
	_ = buf.Send(Event{Type: EventQuiz, Content: "ignored payload"})
	_ = buf.Send(Event{Type: EventToken, Content: "there"})
	if buf.Text() != "hi there" {
		t.Errorf("Text() = %q", buf.Text())
	}
}
