// Package orchestrator sequences a mock interview: speak each question,
// count down, capture the spoken answer and a video clip, then score,
// persist and optionally ask one follow-up.
//
// Machine holds the transitions and performs no I/O. Runner executes the
// machine's commands against the ports in this file.
package orchestrator

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
)

// ErrSynthUnavailable is returned when no speech synthesis is attached.
var ErrSynthUnavailable = errors.New("speech synthesis unavailable")

// Utterance is one question to be played on the user's device.
type Utterance struct {
	Text      string
	Lang      string
	VoiceURI  string // local voice; empty uses the device default
	Audio     []byte // server-synthesized audio played instead of a local voice
	AudioType string
}

// Synthesizer plays utterances on the user's device.
type Synthesizer interface {
	Available() bool
	// Speak blocks until playback ends. Cancelling ctx stops playback.
	Speak(ctx context.Context, u Utterance) error
}

// RemoteVoice synthesizes speech server-side when no local voice fits the session.
type RemoteVoice interface {
	Synthesize(ctx context.Context, text, lang string, gender Gender) (audio []byte, contentType string, err error)
}

// Backend scores, persists and stores answers. *interview.Service satisfies it.
type Backend interface {
	SubmitAnswer(ctx context.Context, sub interview.AnswerSubmission) (*interview.AnswerRecord, error)
	FollowUp(ctx context.Context, answerID int64) (string, error)
	UploadClip(ctx context.Context, mockID string, answerID int64, clip interview.Clip) (string, error)
}

var _ Backend = (*interview.Service)(nil)

// Ports are the devices and services a Runner drives. Only Backend is required.
type Ports struct {
	Synth    Synthesizer
	Remote   RemoteVoice
	Speech   *SpeechCapture
	Recorder *Recorder
	Backend  Backend
	Notify   func(Snapshot)
}
