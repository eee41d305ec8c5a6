package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/google/uuid"
)

// ErrFollowUpsDisabled is returned by FollowUp when follow-ups are switched off.
var ErrFollowUpsDisabled = errors.New("follow-up questions are disabled")

// Service ties generation, scoring, persistence and clip storage together.
// Every method requires an identity in ctx.
type Service struct {
	client    *Client
	store     Store
	clips     *ClipLinker
	followUps bool
}

// NewService returns a service. clips may be nil when object storage is not configured.
func NewService(client *Client, store Store, clips *ClipLinker, followUps bool) *Service {
	return &Service{client: client, store: store, clips: clips, followUps: followUps}
}

// FollowUpsEnabled reports whether root answers get a follow-up question.
func (s *Service) FollowUpsEnabled() bool { return s.followUps }

// CreateInterview generates questions and persists a new interview.
func (s *Service) CreateInterview(ctx context.Context, job JobContext, opts Options) (*Interview, error) {
	if _, err := auth.FromContext(ctx); err != nil {
		return nil, err
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	job.Position = strings.TrimSpace(job.Position)
	if opts.Mode == ModeAuto && job.Position == "" {
		return nil, fmt.Errorf("%w: job position is required", ErrInvalidOptions)
	}

	questions, err := s.client.GenerateQuestions(ctx, job, opts)
	if err != nil {
		return nil, err
	}

	iv := &Interview{
		MockID:        uuid.NewString(),
		JobPosition:   job.Position,
		JobDesc:       job.Desc,
		JobExperience: job.Experience,
		Mode:          opts.Mode,
		Type:          opts.Type,
		Difficulty:    opts.Difficulty,
		QuestionCount: len(questions),
		Language:      opts.Language,
		Reference:     opts.ReferenceContent,
		ResumeText:    opts.ResumeText,
		Questions:     questions,
	}
	if err := s.store.CreateInterview(ctx, iv); err != nil {
		return nil, err
	}
	engine.IncrInterviewsCreated()
	slog.Info("interview created", slog.String("mock_id", iv.MockID), slog.Int("questions", len(questions)))
	return iv, nil
}

// GetInterview returns one of the caller's interviews.
func (s *Service) GetInterview(ctx context.Context, mockID string) (*Interview, error) {
	return s.store.GetInterview(ctx, mockID)
}

// ListInterviews returns the caller's interviews, newest first.
func (s *Service) ListInterviews(ctx context.Context) ([]Interview, error) {
	return s.store.ListInterviews(ctx)
}

// SubmitAnswer scores and records an answer. Nothing is stored when scoring fails.
func (s *Service) SubmitAnswer(ctx context.Context, sub AnswerSubmission) (*AnswerRecord, error) {
	if _, err := auth.FromContext(ctx); err != nil {
		return nil, err
	}
	sub.UserAnswer = strings.TrimSpace(sub.UserAnswer)
	if sub.UserAnswer == "" {
		return nil, ErrEmptyAnswer
	}
	if strings.TrimSpace(sub.Question) == "" {
		return nil, errors.New("question is required")
	}

	iv, err := s.store.GetInterview(ctx, sub.MockID)
	if err != nil {
		return nil, err
	}
	if sub.Language == "" {
		sub.Language = iv.Language
	}
	if sub.Difficulty == "" {
		sub.Difficulty = iv.Difficulty
	}
	if sub.ParentAnswerID != nil {
		parent, err := s.store.GetAnswer(ctx, *sub.ParentAnswerID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("answer %d: %w", *sub.ParentAnswerID, ErrInvalidParent)
		}
		if err != nil {
			return nil, err
		}
		if parent.ParentAnswerID != nil || parent.MockID != sub.MockID {
			return nil, fmt.Errorf("answer %d: %w", parent.ID, ErrInvalidParent)
		}
		if err := s.requireNoFollowUp(ctx, parent); err != nil {
			return nil, err
		}
	}

	score, err := s.client.ScoreAnswer(ctx, ScoreRequest{
		Question:    sub.Question,
		ModelAnswer: sub.ModelAnswer,
		UserAnswer:  sub.UserAnswer,
		Language:    sub.Language,
		Difficulty:  sub.Difficulty,
		FollowUp:    sub.IsFollowUp(),
	})
	if err != nil {
		return nil, err
	}

	rec := &AnswerRecord{
		MockID:         sub.MockID,
		Question:       sub.Question,
		CorrectAnswer:  sub.ModelAnswer,
		UserAnswer:     sub.UserAnswer,
		Feedback:       FeedbackFromScore(score),
		Rating:         score.Rating,
		Language:       sub.Language,
		ParentAnswerID: sub.ParentAnswerID,
		Difficulty:     sub.Difficulty,
	}
	if err := s.store.RecordAnswer(ctx, rec); err != nil {
		return nil, err
	}
	slog.Debug("answer recorded", slog.String("mock_id", rec.MockID), slog.Int64("answer_id", rec.ID), slog.Int("rating", rec.Rating))
	return rec, nil
}

// FollowUp generates one follow-up question for a recorded root answer.
func (s *Service) FollowUp(ctx context.Context, answerID int64) (string, error) {
	if !s.followUps {
		return "", ErrFollowUpsDisabled
	}
	rec, err := s.store.GetAnswer(ctx, answerID)
	if err != nil {
		return "", err
	}
	if rec.ParentAnswerID != nil {
		return "", fmt.Errorf("answer %d is a follow-up: %w", answerID, ErrInvalidParent)
	}
	if err := s.requireNoFollowUp(ctx, rec); err != nil {
		return "", err
	}
	return s.client.GenerateFollowUp(ctx, FollowUpRequest{
		Question:    rec.Question,
		ModelAnswer: rec.CorrectAnswer,
		UserAnswer:  rec.UserAnswer,
		Language:    rec.Language,
	})
}

// requireNoFollowUp rejects a root answer that already has its follow-up.
func (s *Service) requireNoFollowUp(ctx context.Context, root *AnswerRecord) error {
	answers, err := s.store.ListAnswers(ctx, root.MockID)
	if err != nil {
		return err
	}
	for _, a := range answers {
		if a.ParentAnswerID != nil && *a.ParentAnswerID == root.ID {
			return fmt.Errorf("answer %d already has a follow-up: %w", root.ID, ErrInvalidParent)
		}
	}
	return nil
}

// ListAnswers returns the caller's answers for an interview in submission order.
func (s *Service) ListAnswers(ctx context.Context, mockID string) ([]AnswerRecord, error) {
	return s.store.ListAnswers(ctx, mockID)
}

// AttachClipURL links an already uploaded clip to an answer.
func (s *Service) AttachClipURL(ctx context.Context, answerID int64, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("url is required")
	}
	return s.store.AttachClipURL(ctx, answerID, url)
}

// UploadClip stores a clip and links it to its answer.
func (s *Service) UploadClip(ctx context.Context, mockID string, answerID int64, clip Clip) (string, error) {
	if s.clips == nil {
		return "", errors.New("clip storage not configured")
	}
	return s.clips.UploadAndLink(ctx, mockID, answerID, clip)
}

// Report builds the feedback report for an interview.
func (s *Service) Report(ctx context.Context, mockID string) (Report, error) {
	iv, err := s.store.GetInterview(ctx, mockID)
	if err != nil {
		return Report{}, err
	}
	answers, err := s.store.ListAnswers(ctx, mockID)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(iv, answers), nil
}
