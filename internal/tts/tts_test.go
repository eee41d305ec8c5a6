package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/anatolykoptev/go_interview/internal/orchestrator"
)

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func newSpeechServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32, chan speechRequest) {
	t.Helper()
	var hits atomic.Int32
	reqs := make(chan speechRequest, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body speechRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		reqs <- body
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio-" + body.Voice))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, reqs
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSynthesize(t *testing.T) {
	engine.InitCache("", time.Minute, 100, time.Minute)
	srv, hits, reqs := newSpeechServer(t, http.StatusOK)
	s, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "tts-1"})
	require.NoError(t, err)

	audio, ctype, err := s.Synthesize(context.Background(), "  Tell me about yourself.  ", "en", orchestrator.GenderMale)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio-onyx", string(audio))
	assert.Equal(t, "audio/mpeg", ctype)

	req := <-reqs
	assert.Equal(t, speechRequest{Model: "tts-1", Input: "Tell me about yourself.", Voice: "onyx", ResponseFormat: "mp3"}, req)

	// Same text and voice is served from cache.
	_, _, err = s.Synthesize(context.Background(), "Tell me about yourself.", "en", orchestrator.GenderMale)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	audio, _, err = s.Synthesize(context.Background(), "Tell me about yourself.", "en", orchestrator.GenderFemale)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio-nova", string(audio))
	assert.Equal(t, int32(2), hits.Load())
}

func TestSynthesize_Errors(t *testing.T) {
	engine.InitCache("", time.Minute, 100, time.Minute)
	srv, _, _ := newSpeechServer(t, http.StatusBadRequest)
	s, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, _, err = s.Synthesize(context.Background(), "Why this role?", "en", orchestrator.GenderFemale)
	assert.Error(t, err)

	_, _, err = s.Synthesize(context.Background(), "   ", "en", orchestrator.GenderFemale)
	assert.Error(t, err)
}
