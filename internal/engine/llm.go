package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// ErrLLMUnavailable is returned when no LLM client is configured.
var ErrLLMUnavailable = errors.New("llm client not configured")

// llmRetry keeps interactive calls bounded.
var llmRetry = RetryConfig{
	MaxRetries:  2,
	InitialWait: 400 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Multiplier:  2.0,
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a system+user prompt using the configured temperature and max_tokens.
// The response is returned with code fences stripped.
func CallLLM(ctx context.Context, system, prompt string) (string, error) {
	return callLLM(ctx, system, prompt, cfg.LLMTemperature)
}

// CallLLMCreative is CallLLM with a higher temperature, used where variety matters
// (question sets, follow-ups).
func CallLLMCreative(ctx context.Context, system, prompt string) (string, error) {
	return callLLM(ctx, system, prompt, 1.0)
}

func callLLM(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	if cfg.LLMClient == nil {
		return "", ErrLLMUnavailable
	}
	if llmLimiter != nil {
		if err := llmLimiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	metrics.LLMCalls.Add(1)
	resp, err := RetryDo(ctx, llmRetry, func() (string, error) {
		return cfg.LLMClient.Complete(ctx, system, prompt,
			llm.WithChatTemperature(temperature),
		)
	})
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return StripFences(resp), nil
}

// DecodeStrict unmarshals a single JSON value from raw into T.
// Type mismatches and trailing data are errors; shape checks beyond that belong to the caller.
func DecodeStrict[T any](raw string) (T, error) {
	var out T
	dec := json.NewDecoder(strings.NewReader(StripFences(raw)))
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %T: %w (raw: %s)", out, err, TruncateRunes(raw, 200, "..."))
	}
	if dec.More() {
		return out, fmt.Errorf("decode %T: trailing data after JSON value", out)
	}
	return out, nil
}
