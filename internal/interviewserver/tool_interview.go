package interviewserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/anatolykoptev/go_interview/internal/engine/interview"
	"github.com/anatolykoptev/go_interview/internal/toolutil"
)

func (t *tools) registerInterviewCreate(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_create",
		Description: "Create a mock interview. Generates questions with model answers from the job position, description and experience (mode auto) or from reference material (mode content, inline or fetched from reference_url). Returns the interview with its questions.",
	}, handle(t, "interview_create", t.createInterview))
}

func (t *tools) createInterview(ctx context.Context, in InterviewCreateInput) (*InterviewView, error) {
	ref := in.ReferenceContent
	if strings.TrimSpace(ref) == "" && strings.TrimSpace(in.ReferenceURL) != "" {
		page, err := engine.FetchReference(ctx, in.ReferenceURL)
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		slog.Debug("reference fetched", slog.String("url", page.URL), slog.Int("chars", len(page.Content)))
		ref = page.Content
	}

	iv, err := t.svc.CreateInterview(ctx, interview.JobContext{
		Position:   in.JobPosition,
		Desc:       in.JobDesc,
		Experience: in.JobExperience,
	}, interview.Options{
		Mode:             interview.Mode(in.Mode),
		Type:             interview.Type(in.InterviewType),
		Difficulty:       interview.Difficulty(in.Difficulty),
		Count:            in.QuestionCount,
		Language:         in.Language,
		ReferenceContent: ref,
		ResumeText:       in.ResumeText,
	})
	if err != nil {
		return nil, err
	}
	v := viewInterview(iv, true)
	return &v, nil
}

func (t *tools) registerInterviewGet(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_get",
		Description: "Get one of your mock interviews by ID, including its questions and model answers.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle(t, "interview_get", func(ctx context.Context, in MockIDInput) (*InterviewView, error) {
		if err := toolutil.Required("mock_id", in.MockID); err != nil {
			return nil, err
		}
		iv, err := t.svc.GetInterview(ctx, in.MockID)
		if err != nil {
			return nil, err
		}
		v := viewInterview(iv, true)
		return &v, nil
	}))
}

func (t *tools) registerInterviewList(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_list",
		Description: "List your mock interviews, newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle(t, "interview_list", func(ctx context.Context, _ InterviewListInput) (*InterviewListOutput, error) {
		ivs, err := t.svc.ListInterviews(ctx)
		if err != nil {
			return nil, err
		}
		out := &InterviewListOutput{Interviews: make([]InterviewView, 0, len(ivs))}
		for i := range ivs {
			out.Interviews = append(out.Interviews, viewInterview(&ivs[i], false))
		}
		return out, nil
	}))
}

func (t *tools) registerInterviewReport(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interview_report",
		Description: "Build the feedback report for a mock interview: overall rating, rating band, per-competency averages and per-question feedback with follow-ups. Optionally rendered as Markdown or HTML.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle(t, "interview_report", t.report))
}

func (t *tools) report(ctx context.Context, in ReportInput) (*ReportOutput, error) {
	if err := toolutil.Required("mock_id", in.MockID); err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(in.Format))
	switch format {
	case "", "json", "markdown", "html":
	default:
		return nil, fmt.Errorf("unknown format %q (want json, markdown or html)", in.Format)
	}

	rep, err := t.svc.Report(ctx, in.MockID)
	if err != nil {
		return nil, err
	}
	out := &ReportOutput{Report: rep}
	switch format {
	case "markdown":
		out.Markdown = rep.Markdown()
	case "html":
		html, err := interview.RenderReportHTML(rep.Markdown())
		if err != nil {
			return nil, err
		}
		out.HTML = html
	}
	return out, nil
}
