// Package llm abstracts the language-model capability behind a small
// client interface so the orchestration layer never couples to a provider
// SDK.
package llm

import (
	"context"
	"errors"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// ErrUnavailable indicates the model backend could not be reached or
// returned an unusable response. Callers fall back to deterministic
// behavior instead of failing the turn.
var ErrUnavailable = errors.New("llm backend unavailable")

// Request is one model invocation.
type Request struct {
	Model       string // empty means the client's default
	System      string
	Messages    []domain.Message
	Temperature float64
	MaxTokens   int
}

// Response is the completed model output.
type Response struct {
	Content string
}

// Client produces text from a prompt and conversation history.
type Client interface {
	// Complete returns the full response in one call.
	Complete(ctx context.Context, req Request) (Response, error)

	// Stream invokes fn for each generated chunk in order and returns the
	// assembled text. Returning an error from fn stops the stream.
	Stream(ctx context.Context, req Request, fn func(chunk string) error) (string, error)
}

// ClientFunc adapts a function to the Client interface, for tests and
// deterministic fallbacks. Stream delivers the whole completion as a
// single chunk.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Stream implements Client.
func (f ClientFunc) Stream(ctx context.Context, req Request, fn func(string) error) (string, error) {
	resp, err := f(ctx, req)
	if err != nil {
		return "", err
	}
	if fn != nil {
		if err := fn(resp.Content); err != nil {
			return resp.Content, err
		}
	}
	return resp.Content, nil
}
