// Package toolutil provides shared helpers for go_interview MCP tools.
package toolutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_interview/internal/auth"
)

// Caller resolves who is calling a tool.
type Caller struct {
	Verifier *auth.Verifier
	// Fallback is used when the transport carries no Authorization header,
	// as with stdio. Nil rejects such calls.
	Fallback *auth.Identity
}

// Context returns ctx carrying the caller identity of req.
func (c Caller) Context(ctx context.Context, req *mcp.CallToolRequest) (context.Context, error) {
	if h := authorization(req); h != "" {
		id, err := c.Verifier.VerifyHeader(h)
		if err != nil {
			return ctx, err
		}
		return auth.WithIdentity(ctx, id), nil
	}
	if c.Fallback != nil {
		return auth.WithIdentity(ctx, *c.Fallback), nil
	}
	return ctx, auth.ErrUnauthenticated
}

func authorization(req *mcp.CallToolRequest) string {
	if req == nil || req.Extra == nil || req.Extra.Header == nil {
		return ""
	}
	return req.Extra.Header.Get("Authorization")
}

// Required returns an error naming field when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// RequiredID returns an error naming field when id is not positive.
func RequiredID(field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Wrap prefixes err with the tool name. Nil stays nil.
func Wrap(tool string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", tool, err)
}
