package interview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cenkalti/backoff/v5"
)

// ErrEmptyClip is returned when a clip has no data.
var ErrEmptyClip = errors.New("clip is empty")

// Clip is one encoded recording.
type Clip struct {
	Data        []byte
	ContentType string
}

// ClipKey is the object key for an answer's clip.
func ClipKey(mockID string, answerID int64) string {
	return fmt.Sprintf("%s/%d.webm", mockID, answerID)
}

// ClipStorage uploads clips and returns their public URL.
type ClipStorage interface {
	Upload(ctx context.Context, key string, clip Clip) (string, error)
}

// S3Config configures S3Storage. Endpoint is set for S3-compatible stores.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3Storage stores clips in an S3-compatible bucket.
type S3Storage struct {
	uploader   *s3manager.Uploader
	bucket     string
	publicBase string
}

// NewS3Storage builds an uploader for c.
func NewS3Storage(c S3Config) (*S3Storage, error) {
	if c.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg := &aws.Config{Region: aws.String(region)}
	if c.Endpoint != "" {
		awsCfg.Endpoint = aws.String(c.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if c.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(c.AccessKey, c.SecretKey, "")
	}
	if engine.Cfg.HTTPClient != nil {
		awsCfg.HTTPClient = engine.Cfg.HTTPClient
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return &S3Storage{
		uploader:   s3manager.NewUploader(sess),
		bucket:     c.Bucket,
		publicBase: strings.TrimRight(c.PublicBaseURL, "/"),
	}, nil
}

// Upload puts the clip at key, retrying transient failures. Existing objects are overwritten.
func (s *S3Storage) Upload(ctx context.Context, key string, clip Clip) (string, error) {
	if len(clip.Data) == 0 {
		return "", ErrEmptyClip
	}
	contentType := clip.ContentType
	if contentType == "" {
		contentType = "video/webm"
	}

	operation := func() (string, error) {
		out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(clip.Data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return out.Location, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 4 * time.Second

	location, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3), backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	return location, nil
}

// ClipLinker uploads a clip and links it to its answer.
type ClipLinker struct {
	storage ClipStorage
	store   Store
}

// NewClipLinker returns a linker. A nil storage makes every call fail with an error.
func NewClipLinker(storage ClipStorage, store Store) *ClipLinker {
	return &ClipLinker{storage: storage, store: store}
}

// UploadAndLink stores the clip under ClipKey and records its URL on the answer.
// ctx must carry the caller identity.
func (l *ClipLinker) UploadAndLink(ctx context.Context, mockID string, answerID int64, clip Clip) (string, error) {
	if l.storage == nil {
		return "", errors.New("clip storage not configured")
	}
	url, err := l.storage.Upload(ctx, ClipKey(mockID, answerID), clip)
	if err != nil {
		engine.IncrClipUploadErrors()
		return "", err
	}
	if err := l.store.AttachClipURL(ctx, answerID, url); err != nil {
		engine.IncrClipUploadErrors()
		return "", fmt.Errorf("link clip to answer %d: %w", answerID, err)
	}
	engine.IncrClipUploads()
	slog.Debug("clip linked", slog.String("mock_id", mockID), slog.Int64("answer_id", answerID), slog.String("url", url))
	return url, nil
}
