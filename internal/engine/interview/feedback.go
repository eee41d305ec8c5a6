package interview

import (
	"encoding/json"
	"strings"
)

// Feedback is the stored critique of an answer: either StructuredFeedback
// or LegacyFeedback. Use a type switch to handle both.
type Feedback interface {
	isFeedback()
}

// StructuredFeedback carries competency scores. Its encoded form always has
// a "competencies" key, which is how it is told apart from legacy text.
type StructuredFeedback struct {
	Competencies    Competencies `json:"competencies"`
	Strengths       string       `json:"strengths"`
	Improvements    string       `json:"improvements"`
	Tip             string       `json:"tip,omitempty"`
	SuggestedAnswer string       `json:"suggestedAnswer,omitempty"`
}

// LegacyFeedback is free text from before competency scoring existed.
type LegacyFeedback struct {
	Text string
}

func (StructuredFeedback) isFeedback() {}
func (LegacyFeedback) isFeedback()     {}

// FeedbackFromScore converts a score into its stored feedback form.
func FeedbackFromScore(s Score) StructuredFeedback {
	return StructuredFeedback{
		Competencies:    s.Competencies,
		Strengths:       s.Strengths,
		Improvements:    s.Improvements,
		Tip:             s.Tip,
		SuggestedAnswer: s.SuggestedAnswer,
	}
}

// EncodeFeedback serializes f for storage.
func EncodeFeedback(f Feedback) string {
	switch v := f.(type) {
	case StructuredFeedback:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	case LegacyFeedback:
		return v.Text
	default:
		return ""
	}
}

// DecodeFeedback parses stored feedback. A JSON object with a "competencies"
// key is structured; anything else is legacy text.
func DecodeFeedback(s string) Feedback {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		var probe map[string]json.RawMessage
		if json.Unmarshal([]byte(trimmed), &probe) == nil {
			if _, ok := probe["competencies"]; ok {
				var sf StructuredFeedback
				if json.Unmarshal([]byte(trimmed), &sf) == nil {
					return sf
				}
			}
		}
	}
	return LegacyFeedback{Text: s}
}

// AnswerView is the wire form of an AnswerRecord with the feedback variant unpacked.
type AnswerView struct {
	ID             int64               `json:"id"`
	MockID         string              `json:"mock_id"`
	Question       string              `json:"question"`
	CorrectAnswer  string              `json:"correct_answer"`
	UserAnswer     string              `json:"user_answer"`
	Rating         int                 `json:"rating"`
	Feedback       *StructuredFeedback `json:"feedback,omitempty"`
	LegacyFeedback string              `json:"legacy_feedback,omitempty"`
	Language       string              `json:"language"`
	ParentAnswerID *int64              `json:"parent_answer_id,omitempty"`
	Difficulty     Difficulty          `json:"difficulty"`
	VideoURL       string              `json:"video_url,omitempty"`
	CreatedAt      string              `json:"created_at"`
}

// View flattens the record for tool output.
func (r AnswerRecord) View() AnswerView {
	v := AnswerView{
		ID:             r.ID,
		MockID:         r.MockID,
		Question:       r.Question,
		CorrectAnswer:  r.CorrectAnswer,
		UserAnswer:     r.UserAnswer,
		Rating:         r.Rating,
		Language:       r.Language,
		ParentAnswerID: r.ParentAnswerID,
		Difficulty:     r.Difficulty,
		VideoURL:       r.VideoURL,
		CreatedAt:      r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	switch f := r.Feedback.(type) {
	case StructuredFeedback:
		v.Feedback = &f
	case LegacyFeedback:
		v.LegacyFeedback = f.Text
	}
	return v
}
