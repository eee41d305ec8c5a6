package interview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackVariants(t *testing.T) {
	s, err := ParseScore(goodScore)
	require.NoError(t, err)
	sf := FeedbackFromScore(s)

	encoded := EncodeFeedback(sf)
	assert.Contains(t, encoded, `"competencies"`)
	assert.Equal(t, sf, DecodeFeedback(encoded))

	tests := []struct {
		name string
		in   string
	}{
		{"plain text", "Good answer, but add an example."},
		{"json without marker", `{"rating":4,"feedback":"fine"}`},
		{"broken json", `{"competencies": `},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeFeedback(tt.in)
			assert.Equal(t, LegacyFeedback{Text: tt.in}, got)
			assert.Equal(t, tt.in, EncodeFeedback(got))
		})
	}
}

func TestAnswerView(t *testing.T) {
	parent := int64(3)
	rec := AnswerRecord{
		ID: 4, MockID: "m", Question: "q", Rating: 2, ParentAnswerID: &parent,
		Feedback:  LegacyFeedback{Text: "meh"},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	v := rec.View()
	assert.Nil(t, v.Feedback)
	assert.Equal(t, "meh", v.LegacyFeedback)
	assert.Equal(t, &parent, v.ParentAnswerID)
	assert.Equal(t, "2026-03-01T12:00:00Z", v.CreatedAt)

	rec.Feedback = StructuredFeedback{Strengths: "s", Competencies: Competencies{1, 2, 3, 4}}
	v = rec.View()
	require.NotNil(t, v.Feedback)
	assert.Equal(t, "s", v.Feedback.Strengths)
	assert.Empty(t, v.LegacyFeedback)
}
