package interview

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_interview/internal/engine"
)

// Competencies are the four scored dimensions, each 1..5.
type Competencies struct {
	TechnicalKnowledge   int `json:"technicalKnowledge"`
	CommunicationClarity int `json:"communicationClarity"`
	ProblemSolving       int `json:"problemSolving"`
	Relevance            int `json:"relevance"`
}

func (c Competencies) valid() bool {
	for _, v := range []int{c.TechnicalKnowledge, c.CommunicationClarity, c.ProblemSolving, c.Relevance} {
		if v < 1 || v > 5 {
			return false
		}
	}
	return true
}

// Score is a parsed scoring response.
type Score struct {
	Rating          int          `json:"rating"`
	Competencies    Competencies `json:"competencies"`
	Strengths       string       `json:"strengths"`
	Improvements    string       `json:"improvements"`
	Tip             string       `json:"tip"`
	SuggestedAnswer string       `json:"suggestedAnswer"`
}

// ScoreRequest is the input to ScoreAnswer.
type ScoreRequest struct {
	Question    string
	ModelAnswer string
	UserAnswer  string
	Language    string
	Difficulty  Difficulty
	FollowUp    bool
}

const scoreSystem = `You are a strict but encouraging interview coach. You grade one answer at a time and always reply with JSON only.`

const scorePrompt = `Question: %q
Reference answer: %q
Candidate answer: %q
Candidate level: %s
%s
Grade the candidate answer. Write all feedback text in %s.

Return a JSON object with this exact structure:
{
  "rating": <integer 1-5>,
  "competencies": {
    "technicalKnowledge": <integer 1-5>,
    "communicationClarity": <integer 1-5>,
    "problemSolving": <integer 1-5>,
    "relevance": <integer 1-5>
  },
  "strengths": "<what the candidate did well, 1-2 sentences>",
  "improvements": "<what was missing or wrong, 1-2 sentences>",
  "tip": "<one actionable tip>",
  "suggestedAnswer": "<a stronger version of the candidate's answer>"
}

Return ONLY the JSON object, no markdown, no explanation.`

type scoreWire struct {
	Rating          *int          `json:"rating"`
	Competencies    *Competencies `json:"competencies"`
	Strengths       string        `json:"strengths"`
	Improvements    string        `json:"improvements"`
	Tip             string        `json:"tip"`
	SuggestedAnswer string        `json:"suggestedAnswer"`
}

// ScoreAnswer grades one answer. Transport failures are returned wrapped;
// unparseable or out-of-range responses are ErrMalformedResponse.
func (c *Client) ScoreAnswer(ctx context.Context, req ScoreRequest) (Score, error) {
	if strings.TrimSpace(req.UserAnswer) == "" {
		return Score{}, ErrEmptyAnswer
	}
	level := string(req.Difficulty)
	if level == "" {
		level = string(DifficultyMid)
	}
	var note string
	if req.FollowUp {
		note = "This is a follow-up question probing the candidate's previous answer; judge depth over breadth.\n"
	}
	prompt := fmt.Sprintf(scorePrompt,
		engine.TruncateRunes(req.Question, 1000, ""),
		engine.TruncateRunes(req.ModelAnswer, 2000, ""),
		engine.TruncateRunes(req.UserAnswer, 4000, ""),
		level, note, engine.LanguageName(req.Language))

	raw, err := c.precise(ctx, scoreSystem, prompt)
	if err != nil {
		engine.IncrScoringErrors()
		return Score{}, fmt.Errorf("score answer: %w", err)
	}
	s, err := ParseScore(raw)
	if err != nil {
		engine.IncrScoringErrors()
		return Score{}, err
	}
	engine.IncrAnswersScored()
	return s, nil
}

// ParseScore validates a scoring response.
func ParseScore(raw string) (Score, error) {
	w, err := engine.DecodeStrict[scoreWire](raw)
	if err != nil {
		return Score{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Rating == nil || *w.Rating < 1 || *w.Rating > 5 {
		return Score{}, fmt.Errorf("%w: rating missing or outside 1..5", ErrMalformedResponse)
	}
	if w.Competencies == nil || !w.Competencies.valid() {
		return Score{}, fmt.Errorf("%w: competencies missing or outside 1..5", ErrMalformedResponse)
	}
	return Score{
		Rating:          *w.Rating,
		Competencies:    *w.Competencies,
		Strengths:       strings.TrimSpace(w.Strengths),
		Improvements:    strings.TrimSpace(w.Improvements),
		Tip:             strings.TrimSpace(w.Tip),
		SuggestedAnswer: strings.TrimSpace(w.SuggestedAnswer),
	}, nil
}
