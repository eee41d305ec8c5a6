package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingBand(t *testing.T) {
	assert.Equal(t, BandGood, RatingBand(4))
	assert.Equal(t, BandGood, RatingBand(4.6))
	assert.Equal(t, BandFair, RatingBand(3))
	assert.Equal(t, BandFair, RatingBand(3.9))
	assert.Equal(t, BandPoor, RatingBand(2.9))
	assert.Equal(t, BandPoor, RatingBand(0))
}

func TestBuildReport(t *testing.T) {
	iv := &Interview{MockID: "m1", JobPosition: "Data Engineer", Questions: []QuestionItem{{"Q1", "A1"}, {"Q2", "A2"}, {"Q3", "A3"}}}
	rootID := int64(1)
	answers := []AnswerRecord{
		{ID: 1, Question: "Q1", CorrectAnswer: "A1", UserAnswer: "spark", Rating: 4,
			Feedback: StructuredFeedback{Competencies: Competencies{4, 3, 4, 5}, Strengths: "Concrete.", Improvements: "Depth.", Tip: "Use numbers.", SuggestedAnswer: "Partition by date."}},
		{ID: 2, Question: "Follow: why?", UserAnswer: "skew", Rating: 3, ParentAnswerID: &rootID,
			Feedback: StructuredFeedback{Competencies: Competencies{2, 3, 2, 3}}},
		{ID: 3, Question: "Q2", CorrectAnswer: "A2", UserAnswer: " ", Rating: 2, Feedback: LegacyFeedback{Text: "Too short."}, VideoURL: "https://cdn/m1/3.webm"},
	}

	r := BuildReport(iv, answers)
	assert.Equal(t, 3, r.Questions)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 2, r.Answered)
	assert.Equal(t, 3.0, r.OverallRating)
	assert.Equal(t, BandFair, r.Band)
	require.NotNil(t, r.Competencies)
	assert.Equal(t, 3.0, r.Competencies.TechnicalKnowledge)
	assert.Equal(t, 4.0, r.Competencies.Relevance)

	require.Len(t, r.Items, 2)
	assert.Equal(t, 1, r.Items[0].Number)
	require.Len(t, r.Items[0].FollowUps, 1)
	assert.Equal(t, "Follow: why?", r.Items[0].FollowUps[0].Question)
	assert.Equal(t, 2, r.Items[1].Number)
	assert.Equal(t, BandPoor, r.Items[1].Band)

	md := r.Markdown()
	assert.Contains(t, md, "## Question 1: Q1")
	assert.Contains(t, md, "### Follow-up: Follow: why?")
	assert.Contains(t, md, "Suggested answer")
	assert.Contains(t, md, "Partition by date.")
	assert.Contains(t, md, "Ideal answer")
	assert.Contains(t, md, "Too short.")
	assert.Contains(t, md, "No answer recorded")
	assert.Contains(t, md, "[Recording](https://cdn/m1/3.webm)")

	html, err := RenderReportHTML(md)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Interview Feedback Report</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, `<a href="https://cdn/m1/3.webm">Recording</a>`)
}

func TestBuildReportEmptyAndRounding(t *testing.T) {
	r := BuildReport(&Interview{MockID: "m"}, nil)
	assert.Zero(t, r.OverallRating)
	assert.Nil(t, r.Competencies)
	assert.Empty(t, r.Items)

	r = BuildReport(&Interview{MockID: "m"}, []AnswerRecord{
		{ID: 1, Rating: 5, Feedback: LegacyFeedback{}},
		{ID: 2, Rating: 4, Feedback: LegacyFeedback{}},
		{ID: 3, Rating: 4, Feedback: LegacyFeedback{}},
	})
	assert.Equal(t, 4.3, r.OverallRating)
	assert.Nil(t, r.Competencies, "legacy feedback has no competencies")
}

func TestRenderReportHTMLDropsRawHTML(t *testing.T) {
	html, err := RenderReportHTML("**Your answer**\n\n> <script>alert(1)</script>\n")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}
