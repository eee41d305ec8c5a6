package interview

import (
	"context"
	"testing"
	"time"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInterview(t *testing.T, s Store, ctx context.Context, mockID string, created time.Time) *Interview {
	t.Helper()
	iv := &Interview{
		MockID: mockID, JobPosition: "Go Developer", Mode: ModeAuto, Type: TypeTechnical,
		Difficulty: DifficultyMid, QuestionCount: 2, Language: "en",
		Questions: []QuestionItem{{"Q1", "A1"}, {"Q2", "A2"}},
		CreatedAt: created,
	}
	require.NoError(t, s.CreateInterview(ctx, iv))
	return iv
}

func TestSQLiteStoreRequiresIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.CreateInterview(ctx, &Interview{MockID: "x"}), auth.ErrUnauthenticated)
	_, err := s.GetInterview(ctx, "x")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	_, err = s.ListInterviews(ctx)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.ErrorIs(t, s.RecordAnswer(ctx, &AnswerRecord{}), auth.ErrUnauthenticated)
	_, err = s.GetAnswer(ctx, 1)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.ErrorIs(t, s.AttachClipURL(ctx, 1, "u"), auth.ErrUnauthenticated)
	_, err = s.ListAnswers(ctx, "x")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestSQLiteStoreInterviews(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	seedInterview(t, s, as(alice), "m-old", base)
	seedInterview(t, s, as(alice), "m-new", base.Add(time.Hour))
	seedInterview(t, s, as(bob), "m-bob", base)

	got, err := s.GetInterview(as(alice), "m-old")
	require.NoError(t, err)
	assert.Equal(t, alice.Email, got.CreatedBy)
	assert.Equal(t, []QuestionItem{{"Q1", "A1"}, {"Q2", "A2"}}, got.Questions)
	assert.Equal(t, TypeTechnical, got.Type)
	assert.True(t, got.CreatedAt.Equal(base))

	list, err := s.ListInterviews(as(alice))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m-new", list[0].MockID, "newest first")

	_, err = s.GetInterview(as(alice), "m-bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := as(alice)
	seedInterview(t, s, ctx, "m1", time.Time{})
	seedInterview(t, s, ctx, "m2", time.Time{})

	root := &AnswerRecord{MockID: "m1", Question: "Q1", CorrectAnswer: "A1", UserAnswer: "mine", Rating: 4,
		Feedback: StructuredFeedback{Competencies: Competencies{4, 4, 4, 4}, Strengths: "s"}, Language: "en", Difficulty: DifficultyMid}
	require.NoError(t, s.RecordAnswer(ctx, root))
	require.NotZero(t, root.ID)

	follow := &AnswerRecord{MockID: "m1", Question: "Why?", UserAnswer: "because", Rating: 3,
		Feedback: LegacyFeedback{Text: "ok"}, ParentAnswerID: &root.ID}
	require.NoError(t, s.RecordAnswer(ctx, follow))

	t.Run("follow-up cannot be a parent", func(t *testing.T) {
		err := s.RecordAnswer(ctx, &AnswerRecord{MockID: "m1", Question: "q", UserAnswer: "a", Rating: 1, ParentAnswerID: &follow.ID})
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
	t.Run("root already has a follow-up", func(t *testing.T) {
		err := s.RecordAnswer(ctx, &AnswerRecord{MockID: "m1", Question: "Why else?", UserAnswer: "a", Rating: 1, ParentAnswerID: &root.ID})
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
	t.Run("unique index backs the check", func(t *testing.T) {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO user_answer (mock_id_ref, question, user_ans, rating, parent_answer_id, user_email, created_at)
			 VALUES ('m1', 'q', 'a', 1, ?, ?, '2026-01-01T00:00:00Z')`, root.ID, alice.Email)
		assert.ErrorContains(t, err, "UNIQUE constraint failed")
	})
	t.Run("parent from another interview", func(t *testing.T) {
		err := s.RecordAnswer(ctx, &AnswerRecord{MockID: "m2", Question: "q", UserAnswer: "a", Rating: 1, ParentAnswerID: &root.ID})
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
	t.Run("missing parent", func(t *testing.T) {
		missing := int64(999)
		err := s.RecordAnswer(ctx, &AnswerRecord{MockID: "m1", Question: "q", UserAnswer: "a", Rating: 1, ParentAnswerID: &missing})
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
	t.Run("interview of another caller", func(t *testing.T) {
		err := s.RecordAnswer(as(bob), &AnswerRecord{MockID: "m1", Question: "q", UserAnswer: "a", Rating: 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	got, err := s.GetAnswer(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.Feedback, got.Feedback)
	assert.Nil(t, got.ParentAnswerID)
	assert.Empty(t, got.VideoURL)

	require.NoError(t, s.AttachClipURL(ctx, root.ID, "https://cdn/x/1.webm"))
	require.NoError(t, s.AttachClipURL(ctx, root.ID, "https://cdn/m1/1.webm"), "attach overwrites")
	assert.ErrorIs(t, s.AttachClipURL(as(bob), root.ID, "https://evil"), ErrNotFound)

	list, err := s.ListAnswers(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "https://cdn/m1/1.webm", list[0].VideoURL)
	require.NotNil(t, list[1].ParentAnswerID)
	assert.Equal(t, root.ID, *list[1].ParentAnswerID)
	assert.Equal(t, LegacyFeedback{Text: "ok"}, list[1].Feedback)

	other, err := s.ListAnswers(as(bob), "m1")
	require.NoError(t, err)
	assert.Empty(t, other)
}
