package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_interview/internal/engine"
)

const questionSystem = `You are an experienced hiring manager who writes realistic interview questions with concise model answers. You always reply with JSON only.`

const questionPrompt = `%s

Interview type: %s
Difficulty: %s
Write exactly %d interview questions in %s.
%s
Return a JSON object with this exact structure:
{"questions": [{"question": "<question text>", "answer": "<model answer, 3-5 sentences>"}]}

Return ONLY the JSON object, no markdown, no explanation.`

var typeGuidance = map[Type]string{
	TypeGeneral:      "Mix motivation, experience and role-specific questions.",
	TypeBehavioral:   "Ask behavioral questions answerable with the STAR method.",
	TypeTechnical:    "Ask technical questions that probe depth in the role's core skills.",
	TypeSystemDesign: "Ask system design questions about architecture, scaling and trade-offs.",
}

// GenerateQuestions asks the model for an ordered question set.
// The response must be {"questions":[...]} or a bare array of {question, answer};
// anything else is ErrMalformedResponse.
func (c *Client) GenerateQuestions(ctx context.Context, job JobContext, opts Options) ([]QuestionItem, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	var source string
	if opts.Mode == ModeContent {
		source = "Base every question on this reference material:\n" +
			engine.TruncateRunes(opts.ReferenceContent, 6000, "")
	} else {
		source = fmt.Sprintf("Job position: %s\nJob description: %s\nYears of experience: %s",
			job.Position,
			engine.TruncateRunes(job.Desc, 3000, ""),
			job.Experience)
	}

	var extra string
	if g := typeGuidance[opts.Type]; g != "" {
		extra = g + "\n"
	}
	if opts.ResumeText != "" {
		extra += "Tailor questions to the candidate's résumé:\n" + engine.TruncateRunes(opts.ResumeText, 4000, "") + "\n"
	}

	prompt := fmt.Sprintf(questionPrompt, source, opts.Type, opts.Difficulty, opts.Count,
		engine.LanguageName(opts.Language), extra)

	raw, err := c.creative(ctx, questionSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	items, err := ParseQuestions(raw)
	if err != nil {
		slog.Warn("generate questions: bad response", slog.Any("error", err))
		return nil, err
	}
	if len(items) > opts.Count {
		items = items[:opts.Count]
	}
	return items, nil
}

type questionEnvelope struct {
	Questions *[]QuestionItem `json:"questions"`
}

// ParseQuestions validates a question-set response.
func ParseQuestions(raw string) ([]QuestionItem, error) {
	body := engine.StripFences(raw)

	var items []QuestionItem
	switch {
	case len(body) > 0 && body[0] == '[':
		arr, err := engine.DecodeStrict[[]QuestionItem](body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		items = arr
	case len(body) > 0 && body[0] == '{':
		env, err := engine.DecodeStrict[questionEnvelope](body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if env.Questions == nil {
			return nil, fmt.Errorf("%w: missing \"questions\" array", ErrMalformedResponse)
		}
		items = *env.Questions
	default:
		return nil, fmt.Errorf("%w: expected JSON object or array (raw: %s)", ErrMalformedResponse, engine.TruncateRunes(raw, 120, "..."))
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrMalformedResponse)
	}
	for i := range items {
		items[i].Question = strings.TrimSpace(items[i].Question)
		items[i].Answer = strings.TrimSpace(items[i].Answer)
		if items[i].Question == "" {
			return nil, fmt.Errorf("%w: question %d is empty", ErrMalformedResponse, i+1)
		}
	}
	return items, nil
}
