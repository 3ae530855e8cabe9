package llm

import (
	"context"
	"errors"
	"testing"
)

func TestClientFunc_Stream(t *testing.T) {
	c := ClientFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{Content: "full answer"}, nil
	})

	var chunks []string
	got, err := c.Stream(context.Background(), Request{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "full answer" {
		t.Errorf("got %q", got)
	}
	if len(chunks) != 1 || chunks[0] != "full answer" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestClientFunc_StreamError(t *testing.T) {
	wantErr := errors.New("boom")
	c := ClientFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{}, wantErr
	})
	if _, err := c.Stream(context.Background(), Request{}, nil); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
