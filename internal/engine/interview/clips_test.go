package interview

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipKey(t *testing.T) {
	assert.Equal(t, "0b6f-4c/42.webm", ClipKey("0b6f-4c", 42))
}

type fakeStorage struct {
	mu   sync.Mutex
	err  error
	keys []string
}

func (f *fakeStorage) Upload(_ context.Context, key string, clip Clip) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + key, nil
}

func TestClipLinker(t *testing.T) {
	s := newTestStore(t)
	ctx := as(alice)
	seedInterview(t, s, ctx, "m1", time.Time{})
	rec := &AnswerRecord{MockID: "m1", Question: "Q1", UserAnswer: "a", Rating: 3, Feedback: LegacyFeedback{Text: "f"}}
	require.NoError(t, s.RecordAnswer(ctx, rec))

	storage := &fakeStorage{}
	l := NewClipLinker(storage, s)
	url, err := l.UploadAndLink(ctx, "m1", rec.ID, Clip{Data: []byte("webm"), ContentType: "video/webm"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/"+ClipKey("m1", rec.ID), url)

	got, err := s.GetAnswer(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, url, got.VideoURL)

	t.Run("upload failure leaves answer untouched", func(t *testing.T) {
		rec2 := &AnswerRecord{MockID: "m1", Question: "Q2", UserAnswer: "b", Rating: 5, Feedback: LegacyFeedback{Text: "g"}}
		require.NoError(t, s.RecordAnswer(ctx, rec2))
		storage.err = errors.New("503 slow down")

		_, err := l.UploadAndLink(ctx, "m1", rec2.ID, Clip{Data: []byte("x")})
		require.Error(t, err)

		got, err := s.GetAnswer(ctx, rec2.ID)
		require.NoError(t, err)
		assert.Empty(t, got.VideoURL)
		assert.Equal(t, 5, got.Rating)
	})

	t.Run("no storage", func(t *testing.T) {
		_, err := NewClipLinker(nil, s).UploadAndLink(ctx, "m1", rec.ID, Clip{Data: []byte("x")})
		assert.Error(t, err)
	})
}

func TestS3StorageUpload(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, ctype, body = r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(data)
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st, err := NewS3Storage(S3Config{
		Bucket: "clips", Region: "us-east-1", Endpoint: srv.URL,
		AccessKey: "AKIDEXAMPLE", SecretKey: "secret",
	})
	require.NoError(t, err)

	url, err := st.Upload(context.Background(), ClipKey("mock-1", 7), Clip{Data: []byte("webm-bytes"), ContentType: "video/webm;codecs=vp9,opus"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/clips/mock-1/7.webm"), url)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/clips/mock-1/7.webm", path)
	assert.Equal(t, "video/webm;codecs=vp9,opus", ctype)
	assert.Equal(t, "webm-bytes", body)
}

func TestS3StoragePublicBaseAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st, err := NewS3Storage(S3Config{Bucket: "clips", Endpoint: srv.URL, AccessKey: "a", SecretKey: "b", PublicBaseURL: "https://media.example/"})
	require.NoError(t, err)

	url, err := st.Upload(context.Background(), "m/1.webm", Clip{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "https://media.example/m/1.webm", url)

	_, err = st.Upload(context.Background(), "m/2.webm", Clip{})
	assert.ErrorIs(t, err, ErrEmptyClip)

	_, err = NewS3Storage(S3Config{})
	assert.Error(t, err)
}
