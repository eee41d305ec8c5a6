package interviewserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
	"github.com/anatolykoptev/go_interview/internal/toolutil"
)

func (t *tools) registerAnswerSubmit(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_submit",
		Description: "Score an answer to an interview question and record it. Returns the rating (1-5), per-competency scores, strengths, improvements, a tip and a suggested answer. Set parent_answer_id when answering a follow-up question. Nothing is recorded when scoring fails; retry the call.",
	}, handle(t, "answer_submit", t.submitAnswer))
}

func (t *tools) submitAnswer(ctx context.Context, in AnswerSubmitInput) (*interview.AnswerView, error) {
	if err := toolutil.Required("mock_id", in.MockID); err != nil {
		return nil, err
	}
	if err := toolutil.Required("question", in.Question); err != nil {
		return nil, err
	}
	sub := interview.AnswerSubmission{
		MockID:      in.MockID,
		Question:    in.Question,
		ModelAnswer: in.ModelAnswer,
		UserAnswer:  in.UserAnswer,
		Language:    in.Language,
		Difficulty:  interview.Difficulty(in.Difficulty),
	}
	if in.ParentAnswerID > 0 {
		parent := in.ParentAnswerID
		sub.ParentAnswerID = &parent
	}
	rec, err := t.svc.SubmitAnswer(ctx, sub)
	if err != nil {
		if errors.Is(err, interview.ErrMalformedResponse) {
			return nil, fmt.Errorf("score: %w (retry the submission)", err)
		}
		return nil, err
	}
	v := rec.View()
	return &v, nil
}

func (t *tools) registerAnswerFollowUp(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_followup",
		Description: "Generate one follow-up question probing a recorded root answer. Answer it with answer_submit and parent_answer_id set to this answer.",
	}, handle(t, "answer_followup", func(ctx context.Context, in AnswerIDInput) (*FollowUpOutput, error) {
		if err := toolutil.RequiredID("answer_id", in.AnswerID); err != nil {
			return nil, err
		}
		q, err := t.svc.FollowUp(ctx, in.AnswerID)
		if err != nil {
			return nil, err
		}
		return &FollowUpOutput{AnswerID: in.AnswerID, FollowUp: q}, nil
	}))
}

func (t *tools) registerAnswerList(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_list",
		Description: "List the recorded answers of a mock interview in submission order, with feedback and clip links.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle(t, "answer_list", func(ctx context.Context, in MockIDInput) (*AnswerListOutput, error) {
		if err := toolutil.Required("mock_id", in.MockID); err != nil {
			return nil, err
		}
		recs, err := t.svc.ListAnswers(ctx, in.MockID)
		if err != nil {
			return nil, err
		}
		out := &AnswerListOutput{MockID: in.MockID, Answers: make([]interview.AnswerView, 0, len(recs))}
		for _, r := range recs {
			out.Answers = append(out.Answers, r.View())
		}
		return out, nil
	}))
}

func (t *tools) registerAnswerAttachClip(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_attach_clip",
		Description: "Link an already uploaded recording to a recorded answer. Replaces any previous link.",
	}, handle(t, "answer_attach_clip", func(ctx context.Context, in AttachClipInput) (*AttachClipOutput, error) {
		if err := toolutil.RequiredID("answer_id", in.AnswerID); err != nil {
			return nil, err
		}
		if err := toolutil.Required("url", in.URL); err != nil {
			return nil, err
		}
		if err := t.svc.AttachClipURL(ctx, in.AnswerID, in.URL); err != nil {
			return nil, err
		}
		return &AttachClipOutput{AnswerID: in.AnswerID, URL: in.URL}, nil
	}))
}
