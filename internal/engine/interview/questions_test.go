package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalize(t *testing.T) {
	got, err := Options{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Options{Mode: ModeAuto, Type: TypeGeneral, Difficulty: DifficultyMid, Count: 5, Language: "en"}, got)

	tests := []struct {
		name string
		opts Options
	}{
		{"bad count", Options{Count: 7}},
		{"bad type", Options{Type: "trivia"}},
		{"bad difficulty", Options{Difficulty: "principal"}},
		{"bad mode", Options{Mode: "random"}},
		{"content without reference", Options{Mode: ModeContent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}

	got, err = Options{Type: "System-Design", Difficulty: "SENIOR", Count: 10, Language: "de-DE"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, TypeSystemDesign, got.Type)
	assert.Equal(t, DifficultySenior, got.Difficulty)
	assert.Equal(t, "de-DE", got.Language)
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"envelope", `{"questions":[{"question":"Why Go?","answer":"Simplicity."}]}`, 1, false},
		{"bare array", `[{"question":"a","answer":"b"},{"question":"c","answer":"d"}]`, 2, false},
		{"fenced", "```json\n[{\"question\":\"a\",\"answer\":\"b\"}]\n```", 1, false},
		{"other array key", `{"items":[{"question":"a","answer":"b"}]}`, 0, true},
		{"nested object", `{"data":{"questions":[{"question":"a"}]}}`, 0, true},
		{"empty list", `{"questions":[]}`, 0, true},
		{"blank question", `[{"question":"  ","answer":"b"}]`, 0, true},
		{"wrong types", `{"questions":"a, b, c"}`, 0, true},
		{"prose", `Here are five questions: 1. Why Go?`, 0, true},
		{"trailing garbage", `[{"question":"a","answer":"b"}] thanks!`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuestions(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestGenerateQuestions(t *testing.T) {
	llm := &fakeLLM{questions: questionsJSON(5)}
	c := NewClientWith(llm.complete)

	got, err := c.GenerateQuestions(context.Background(),
		JobContext{Position: "Backend Engineer", Desc: "Go, Postgres", Experience: "4"},
		Options{Type: TypeTechnical, Difficulty: DifficultySenior, Count: 3, Language: "es"})
	require.NoError(t, err)
	assert.Len(t, got, 3, "extra questions are dropped")
	assert.Equal(t, "Q1", got[0].Question)

	p := llm.lastPrompt()
	assert.Contains(t, p, "Backend Engineer")
	assert.Contains(t, p, "exactly 3")
	assert.Contains(t, p, "Spanish")
	assert.Contains(t, p, "senior")
}

func TestGenerateQuestionsContentMode(t *testing.T) {
	llm := &fakeLLM{questions: questionsJSON(3)}
	c := NewClientWith(llm.complete)

	_, err := c.GenerateQuestions(context.Background(), JobContext{},
		Options{Mode: ModeContent, Count: 3, ReferenceContent: "Raft elects a leader per term.", ResumeText: "Built a Raft KV store"})
	require.NoError(t, err)
	p := llm.lastPrompt()
	assert.Contains(t, p, "Raft elects a leader")
	assert.Contains(t, p, "Built a Raft KV store")
}

func TestGenerateQuestionsTransportError(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	c := NewClientWith(func(context.Context, string, string) (string, error) { return "", boom })
	_, err := c.GenerateQuestions(context.Background(), JobContext{Position: "SRE"}, Options{})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}
