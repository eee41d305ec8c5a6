package interviewserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
)

const defaultResumeChars = 8000

func registerResumeExtract(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "resume_extract",
		Description: "Extract plain text from a PDF résumé (max 5 MB) for use as resume_text in interview_create.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, in ResumeExtractInput) (*mcp.CallToolResult, *ResumeExtractOutput, error) {
		out, err := extractResume(in)
		if err != nil {
			return nil, nil, fmt.Errorf("resume_extract: %w", err)
		}
		return nil, out, nil
	})
}

func extractResume(in ResumeExtractInput) (*ResumeExtractOutput, error) {
	if strings.TrimSpace(in.Data) == "" {
		return nil, errors.New("data is required")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.Data))
	if err != nil {
		return nil, fmt.Errorf("data is not valid base64: %w", err)
	}
	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = defaultResumeChars
	}
	text, err := interview.ExtractResumeText(data, in.ContentType, maxChars)
	if err != nil {
		return nil, err
	}
	return &ResumeExtractOutput{Text: text, Chars: len([]rune(text))}, nil
}
