package interview

import (
	"context"
)

// Store persists interviews and answers. Every method reads the caller from
// ctx (auth.WithIdentity) and fails with auth.ErrUnauthenticated without one.
// Records owned by another caller are reported as ErrNotFound.
type Store interface {
	CreateInterview(ctx context.Context, iv *Interview) error
	GetInterview(ctx context.Context, mockID string) (*Interview, error)
	ListInterviews(ctx context.Context) ([]Interview, error)
	// RecordAnswer stores rec and sets rec.ID. A non-nil ParentAnswerID must name
	// a root answer of the same interview and caller, else ErrInvalidParent.
	RecordAnswer(ctx context.Context, rec *AnswerRecord) error
	GetAnswer(ctx context.Context, id int64) (*AnswerRecord, error)
	// AttachClipURL sets or replaces the clip reference of an answer.
	AttachClipURL(ctx context.Context, answerID int64, url string) error
	ListAnswers(ctx context.Context, mockID string) ([]AnswerRecord, error)
	Close() error
}
