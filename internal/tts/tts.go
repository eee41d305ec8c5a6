// Package tts synthesizes interview questions server-side for devices that
// have no local voice in the interview language.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/anatolykoptev/go_interview/internal/orchestrator"
)

// ErrDisabled is returned by New when no API key is configured.
var ErrDisabled = errors.New("tts: no api key configured")

const (
	defaultModel = "gpt-4o-mini-tts"
	contentType  = "audio/mpeg"
	maxInput     = 4096 // runes accepted by the speech endpoint
	maxAudio     = 8 << 20
)

var voices = map[orchestrator.Gender]string{
	orchestrator.GenderFemale: "nova",
	orchestrator.GenderMale:   "onyx",
}

// Config configures the speech endpoint.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // empty = api.openai.com
	HTTPClient *http.Client
}

// Synthesizer turns question text into MP3 audio.
type Synthesizer struct {
	client openai.Client
	model  string
}

var _ orchestrator.RemoteVoice = (*Synthesizer)(nil)

// New returns ErrDisabled without an API key.
func New(c Config) (*Synthesizer, error) {
	if c.APIKey == "" {
		return nil, ErrDisabled
	}
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	return &Synthesizer{client: openai.NewClient(opts...), model: model}, nil
}

// Synthesize returns MP3 audio for text. Results are cached per model, voice and text.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string, gender orchestrator.Gender) ([]byte, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", errors.New("tts: empty text")
	}
	text = engine.TruncateRunes(text, maxInput, "")
	voice, ok := voices[gender]
	if !ok {
		voice = voices[orchestrator.GenderFemale]
	}

	key := engine.CacheKey("tts", s.model, voice, text)
	if audio, ok := engine.CacheGetBytes(ctx, key); ok {
		return audio, contentType, nil
	}

	engine.IncrTTSRequests()
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat("mp3"),
	})
	if err != nil {
		return nil, "", fmt.Errorf("tts: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudio))
	if err != nil {
		return nil, "", fmt.Errorf("tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", errors.New("tts: empty audio")
	}
	engine.CacheSetBytes(ctx, key, audio)
	slog.Debug("tts synthesized",
		slog.String("voice", voice),
		slog.String("lang", lang),
		slog.Int("bytes", len(audio)))
	return audio, contentType, nil
}
