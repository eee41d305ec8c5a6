package interview

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Band is a colour band for a rating.
type Band string

const (
	BandGood Band = "good"
	BandFair Band = "fair"
	BandPoor Band = "poor"
)

// RatingBand classifies r: ≥4 good, ≥3 fair, else poor.
func RatingBand(r float64) Band {
	switch {
	case r >= 4:
		return BandGood
	case r >= 3:
		return BandFair
	default:
		return BandPoor
	}
}

// CompetencyAverages are per-dimension means over structured feedback.
type CompetencyAverages struct {
	TechnicalKnowledge   float64 `json:"technicalKnowledge"`
	CommunicationClarity float64 `json:"communicationClarity"`
	ProblemSolving       float64 `json:"problemSolving"`
	Relevance            float64 `json:"relevance"`
}

// ReportItem is a root answer with its follow-ups.
type ReportItem struct {
	Number    int          `json:"number"`
	Answer    AnswerView   `json:"answer"`
	Band      Band         `json:"band"`
	FollowUps []AnswerView `json:"follow_ups,omitempty"`
}

// Report aggregates an interview's answers.
type Report struct {
	MockID        string              `json:"mock_id"`
	JobPosition   string              `json:"job_position"`
	Questions     int                 `json:"questions"`
	Answered      int                 `json:"answered"`
	Total         int                 `json:"total_answers"`
	OverallRating float64             `json:"overall_rating"`
	Band          Band                `json:"band"`
	Competencies  *CompetencyAverages `json:"competencies,omitempty"`
	Items         []ReportItem        `json:"items"`
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// BuildReport aggregates answers in stored order. The overall rating is the
// mean over every answer, follow-ups included, rounded to one decimal.
// Follow-ups whose root is missing are listed as their own items.
func BuildReport(iv *Interview, answers []AnswerRecord) Report {
	r := Report{MockID: iv.MockID, JobPosition: iv.JobPosition, Questions: len(iv.Questions), Total: len(answers)}

	var (
		sum        int
		comps      CompetencyAverages
		structured int
	)
	index := make(map[int64]int, len(answers))
	for _, a := range answers {
		sum += a.Rating
		if strings.TrimSpace(a.UserAnswer) != "" {
			r.Answered++
		}
		if sf, ok := a.Feedback.(StructuredFeedback); ok {
			structured++
			comps.TechnicalKnowledge += float64(sf.Competencies.TechnicalKnowledge)
			comps.CommunicationClarity += float64(sf.Competencies.CommunicationClarity)
			comps.ProblemSolving += float64(sf.Competencies.ProblemSolving)
			comps.Relevance += float64(sf.Competencies.Relevance)
		}

		if a.ParentAnswerID != nil {
			if i, ok := index[*a.ParentAnswerID]; ok {
				r.Items[i].FollowUps = append(r.Items[i].FollowUps, a.View())
				continue
			}
		}
		index[a.ID] = len(r.Items)
		r.Items = append(r.Items, ReportItem{
			Number: len(r.Items) + 1,
			Answer: a.View(),
			Band:   RatingBand(float64(a.Rating)),
		})
	}

	if len(answers) > 0 {
		r.OverallRating = round1(float64(sum) / float64(len(answers)))
	}
	r.Band = RatingBand(r.OverallRating)
	if structured > 0 {
		n := float64(structured)
		r.Competencies = &CompetencyAverages{
			TechnicalKnowledge:   round1(comps.TechnicalKnowledge / n),
			CommunicationClarity: round1(comps.CommunicationClarity / n),
			ProblemSolving:       round1(comps.ProblemSolving / n),
			Relevance:            round1(comps.Relevance / n),
		}
	}
	return r
}

// Markdown renders the report.
func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Interview Feedback Report\n\n")
	if r.JobPosition != "" {
		fmt.Fprintf(&b, "**Position:** %s\n\n", r.JobPosition)
	}
	fmt.Fprintf(&b, "| Questions | Answered | Avg rating |\n|---|---|---|\n| %d | %d/%d | %.1f/5 (%s) |\n\n",
		r.Questions, r.Answered, r.Total, r.OverallRating, r.Band)

	if c := r.Competencies; c != nil {
		b.WriteString("## Competencies\n\n")
		fmt.Fprintf(&b, "- Technical: %.1f/5\n- Communication: %.1f/5\n- Problem solving: %.1f/5\n- Relevance: %.1f/5\n\n",
			c.TechnicalKnowledge, c.CommunicationClarity, c.ProblemSolving, c.Relevance)
	}

	for _, it := range r.Items {
		fmt.Fprintf(&b, "## Question %d: %s\n\n", it.Number, it.Answer.Question)
		writeAnswerSections(&b, it.Answer)
		for _, f := range it.FollowUps {
			fmt.Fprintf(&b, "### Follow-up: %s\n\n", f.Question)
			writeAnswerSections(&b, f)
		}
	}
	return b.String()
}

func writeAnswerSections(b *strings.Builder, a AnswerView) {
	fmt.Fprintf(b, "**Rating:** %d/5\n\n", a.Rating)
	section := func(label, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		fmt.Fprintf(b, "**%s**\n\n> %s\n\n", label, strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n> "))
	}

	if f := a.Feedback; f != nil {
		section("Strengths", f.Strengths)
		section("Areas to improve", f.Improvements)
	}
	userAns := a.UserAnswer
	if strings.TrimSpace(userAns) == "" {
		userAns = "No answer recorded"
	}
	section("Your answer", userAns)
	if f := a.Feedback; f != nil && f.SuggestedAnswer != "" {
		section("Suggested answer", f.SuggestedAnswer)
	} else {
		section("Ideal answer", a.CorrectAnswer)
	}
	if f := a.Feedback; f != nil {
		section("Tip", f.Tip)
	} else {
		section("Feedback", a.LegacyFeedback)
	}
	if a.VideoURL != "" {
		fmt.Fprintf(b, "[Recording](%s)\n\n", a.VideoURL)
	}
}

var reportMD = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderReportHTML converts report Markdown to an HTML fragment. Raw HTML in
// answers is omitted.
func RenderReportHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := reportMD.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
