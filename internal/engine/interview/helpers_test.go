package interview

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/stretchr/testify/require"
)

var (
	alice = auth.Identity{UserID: "u1", Email: "alice@example.com"}
	bob   = auth.Identity{UserID: "u2", Email: "bob@example.com"}
)

func as(id auth.Identity) context.Context {
	return auth.WithIdentity(context.Background(), id)
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "interview.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const goodScore = `{"rating":4,"competencies":{"technicalKnowledge":4,"communicationClarity":5,"problemSolving":3,"relevance":4},
"strengths":"Clear structure.","improvements":"Mention trade-offs.","tip":"Quantify impact.","suggestedAnswer":"I would..."}`

// fakeLLM answers by prompt kind and records calls.
type fakeLLM struct {
	mu        sync.Mutex
	questions string
	score     string
	followUp  string
	scoreErr  error
	calls     map[string]int
	prompts   []string
}

func (f *fakeLLM) complete(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.prompts = append(f.prompts, prompt)
	switch {
	case system == questionSystem:
		f.calls["questions"]++
		return f.questions, nil
	case system == scoreSystem:
		f.calls["score"]++
		if f.scoreErr != nil {
			return "", f.scoreErr
		}
		return f.score, nil
	case system == followUpSystem:
		f.calls["followup"]++
		if f.followUp == "" {
			return "", errors.New("upstream timeout")
		}
		return f.followUp, nil
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func questionsJSON(n int) string {
	var parts []string
	for i := 0; i < n; i++ {
		parts = append(parts, `{"question":"Q`+strconv.Itoa(i+1)+`","answer":"A`+strconv.Itoa(i+1)+`"}`)
	}
	return `{"questions":[` + strings.Join(parts, ",") + `]}`
}
