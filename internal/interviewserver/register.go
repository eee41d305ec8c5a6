package interviewserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/anatolykoptev/go_interview/internal/engine/interview"
	"github.com/anatolykoptev/go_interview/internal/toolutil"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 9

type tools struct {
	svc    *interview.Service
	caller toolutil.Caller
}

// RegisterTools registers the interview tools on the given MCP server:
// interview_create, interview_get, interview_list, answer_submit,
// answer_followup, answer_list, answer_attach_clip, interview_report,
// resume_extract.
func RegisterTools(server *mcp.Server, svc *interview.Service, caller toolutil.Caller) {
	t := &tools{svc: svc, caller: caller}
	t.registerInterviewCreate(server)
	t.registerInterviewGet(server)
	t.registerInterviewList(server)
	t.registerAnswerSubmit(server)
	t.registerAnswerFollowUp(server)
	t.registerAnswerList(server)
	t.registerAnswerAttachClip(server)
	t.registerInterviewReport(server)
	registerResumeExtract(server)
}

// handle runs fn under the caller's identity and prefixes errors with the tool name.
func handle[In, Out any](t *tools, name string, fn func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		var zero Out
		ctx, err := t.caller.Context(ctx, req)
		if err != nil {
			return nil, zero, toolutil.Wrap(name, err)
		}
		out, err := fn(ctx, in)
		if err != nil {
			if !expected(err) {
				engine.IncrToolErrors()
				slog.Warn("tool failed", slog.String("tool", name), slog.Any("error", err))
			}
			return nil, zero, toolutil.Wrap(name, err)
		}
		return nil, out, nil
	}
}

// expected reports whether err stems from the caller's input rather than a fault.
func expected(err error) bool {
	for _, target := range []error{
		auth.ErrUnauthenticated,
		interview.ErrNotFound,
		interview.ErrInvalidOptions,
		interview.ErrInvalidParent,
		interview.ErrEmptyAnswer,
		interview.ErrFollowUpsDisabled,
		engine.ErrUnsupportedURL,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
