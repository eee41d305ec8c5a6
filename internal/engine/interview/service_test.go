package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, llm *fakeLLM, followUps bool) (*Service, *SQLiteStore, *fakeStorage) {
	t.Helper()
	store := newTestStore(t)
	storage := &fakeStorage{}
	return NewService(NewClientWith(llm.complete), store, NewClipLinker(storage, store), followUps), store, storage
}

func TestServiceFlow(t *testing.T) {
	llm := &fakeLLM{questions: questionsJSON(3), score: goodScore, followUp: `{"followUp":"Which metric would you watch?"}`}
	svc, _, _ := newTestService(t, llm, true)
	ctx := as(alice)

	iv, err := svc.CreateInterview(ctx, JobContext{Position: "SRE", Desc: "k8s", Experience: "5"}, Options{Count: 3})
	require.NoError(t, err)
	assert.Len(t, iv.MockID, 36)
	assert.Equal(t, 3, iv.QuestionCount)

	root, err := svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: iv.Questions[0].Question,
		ModelAnswer: iv.Questions[0].Answer, UserAnswer: "  I would add SLOs  "})
	require.NoError(t, err)
	assert.Equal(t, "I would add SLOs", root.UserAnswer)
	assert.Equal(t, "en", root.Language, "language inherited from interview")
	assert.Equal(t, DifficultyMid, root.Difficulty)
	assert.IsType(t, StructuredFeedback{}, root.Feedback)

	q, err := svc.FollowUp(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "Which metric would you watch?", q)

	follow, err := svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: q, UserAnswer: "p99 latency", ParentAnswerID: &root.ID})
	require.NoError(t, err)

	_, err = svc.FollowUp(ctx, follow.ID)
	assert.ErrorIs(t, err, ErrInvalidParent, "follow-ups never spawn follow-ups")
	assert.Equal(t, 1, llm.calls["followup"])

	_, err = svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: "deeper", UserAnswer: "x", ParentAnswerID: &follow.ID})
	assert.ErrorIs(t, err, ErrInvalidParent)

	url, err := svc.UploadClip(ctx, iv.MockID, root.ID, Clip{Data: []byte("v")})
	require.NoError(t, err)

	rep, err := svc.Report(ctx, iv.MockID)
	require.NoError(t, err)
	require.Len(t, rep.Items, 1)
	assert.Equal(t, url, rep.Items[0].Answer.VideoURL)
	assert.Len(t, rep.Items[0].FollowUps, 1)

	list, err := svc.ListInterviews(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestServiceOneFollowUpPerRoot(t *testing.T) {
	llm := &fakeLLM{questions: questionsJSON(3), score: goodScore, followUp: `{"followUp":"Why?"}`}
	svc, store, _ := newTestService(t, llm, true)
	ctx := as(alice)

	iv, err := svc.CreateInterview(ctx, JobContext{Position: "SRE"}, Options{Count: 3})
	require.NoError(t, err)
	root, err := svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: "Q1", UserAnswer: "first"})
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: "Why?", UserAnswer: "because", ParentAnswerID: &root.ID})
	require.NoError(t, err)
	scored := llm.calls["score"]

	_, err = svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: "Why again?", UserAnswer: "still", ParentAnswerID: &root.ID})
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Equal(t, scored, llm.calls["score"], "rejected before scoring")

	_, err = svc.FollowUp(ctx, root.ID)
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Zero(t, llm.calls["followup"])

	answers, err := store.ListAnswers(ctx, iv.MockID)
	require.NoError(t, err)
	assert.Len(t, answers, 2)

	rep, err := svc.Report(ctx, iv.MockID)
	require.NoError(t, err)
	require.Len(t, rep.Items, 1)
	assert.Len(t, rep.Items[0].FollowUps, 1)
}

func TestServiceScoringFailurePersistsNothing(t *testing.T) {
	llm := &fakeLLM{questions: questionsJSON(3), score: `{"rating": "great"}`}
	svc, store, _ := newTestService(t, llm, true)
	ctx := as(alice)

	iv, err := svc.CreateInterview(ctx, JobContext{Position: "QA"}, Options{Count: 3})
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: "Q1", UserAnswer: "answer"})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	llm.score = ""
	llm.scoreErr = errors.New("network unreachable")
	_, err = svc.SubmitAnswer(ctx, AnswerSubmission{MockID: iv.MockID, Question: "Q1", UserAnswer: "answer"})
	assert.ErrorIs(t, err, llm.scoreErr)

	answers, err := store.ListAnswers(ctx, iv.MockID)
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestServiceGuards(t *testing.T) {
	llm := &fakeLLM{questions: questionsJSON(5), score: goodScore}
	svc, _, _ := newTestService(t, llm, false)

	_, err := svc.CreateInterview(context.Background(), JobContext{Position: "x"}, Options{})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Zero(t, llm.calls["questions"], "no generation without identity")

	_, err = svc.CreateInterview(as(alice), JobContext{}, Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	iv, err := svc.CreateInterview(as(alice), JobContext{Position: "PM"}, Options{})
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(as(alice), AnswerSubmission{MockID: iv.MockID, Question: "Q1", UserAnswer: " \n "})
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	_, err = svc.SubmitAnswer(as(bob), AnswerSubmission{MockID: iv.MockID, Question: "Q1", UserAnswer: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, llm.calls["score"])

	rec, err := svc.SubmitAnswer(as(alice), AnswerSubmission{MockID: iv.MockID, Question: "Q1", UserAnswer: "hi"})
	require.NoError(t, err)
	_, err = svc.FollowUp(as(alice), rec.ID)
	assert.ErrorIs(t, err, ErrFollowUpsDisabled)

	assert.Error(t, svc.AttachClipURL(as(alice), rec.ID, " "))
	require.NoError(t, svc.AttachClipURL(as(alice), rec.ID, "https://cdn/x.webm"))
}
