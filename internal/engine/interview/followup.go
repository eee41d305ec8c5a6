package interview

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_interview/internal/engine"
)

// FollowUpRequest is the input to GenerateFollowUp.
type FollowUpRequest struct {
	Question    string
	ModelAnswer string
	UserAnswer  string
	Language    string
}

const followUpSystem = `You are an interviewer who asks one sharp follow-up question at a time. You always reply with JSON only.`

const followUpPrompt = `Original question: %q
Reference answer: %q
Candidate answer: %q

Ask ONE short follow-up question in %s that probes a gap or a claim in the candidate answer.
Return {"followUp": "<question>"} and nothing else.`

type followUpWire struct {
	FollowUp string `json:"followUp"`
}

// GenerateFollowUp returns a single follow-up question for a root answer.
// Callers treat any error as "no follow-up".
func (c *Client) GenerateFollowUp(ctx context.Context, req FollowUpRequest) (string, error) {
	prompt := fmt.Sprintf(followUpPrompt,
		engine.TruncateRunes(req.Question, 1000, ""),
		engine.TruncateRunes(req.ModelAnswer, 1500, ""),
		engine.TruncateRunes(req.UserAnswer, 3000, ""),
		engine.LanguageName(req.Language))

	raw, err := c.creative(ctx, followUpSystem, prompt)
	if err != nil {
		engine.IncrFollowUpErrors()
		return "", fmt.Errorf("follow-up: %w", err)
	}
	w, err := engine.DecodeStrict[followUpWire](raw)
	if err != nil {
		engine.IncrFollowUpErrors()
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	q := strings.TrimSpace(w.FollowUp)
	if q == "" {
		engine.IncrFollowUpErrors()
		return "", fmt.Errorf("%w: empty follow-up", ErrMalformedResponse)
	}
	engine.IncrFollowUpsGenerated()
	return q, nil
}
