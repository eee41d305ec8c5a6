package interview

import (
	"context"

	"github.com/anatolykoptev/go_interview/internal/engine"
)

// CompleteFunc sends a system and user prompt to the text-generation endpoint.
type CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

// Client talks to the text-generation endpoint for questions, scoring and follow-ups.
type Client struct {
	precise  CompleteFunc // scoring
	creative CompleteFunc // question sets and follow-ups
}

// NewClient returns a client backed by the engine's configured LLM.
func NewClient() *Client {
	return &Client{precise: engine.CallLLM, creative: engine.CallLLMCreative}
}

// NewClientWith returns a client that sends every prompt through fn.
func NewClientWith(fn CompleteFunc) *Client {
	return &Client{precise: fn, creative: fn}
}
