package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
)

// ErrNotRecording is returned by Recorder.Stop when no clip is being recorded.
var ErrNotRecording = errors.New("recorder is not active")

// ClipMimeTypes are the clip encodings in order of preference.
var ClipMimeTypes = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm",
}

const defaultClipType = "video/webm"

// Track is a live media track on the user's device.
type Track interface {
	Kind() string
	Stop()
}

// Encoder records a set of tracks into one clip.
type Encoder interface {
	Finish(ctx context.Context) (interview.Clip, error)
	Abort()
}

// MediaDevices is the user's camera, microphone and clip encoder.
type MediaDevices interface {
	// AcquireAudio opens the microphone with echo cancellation, noise
	// suppression and auto gain.
	AcquireAudio(ctx context.Context) (Track, error)
	// Video returns the live camera track, if any.
	Video(ctx context.Context) (Track, bool)
	Supports(mimeType string) bool
	Record(ctx context.Context, tracks []Track, mimeType string) (Encoder, error)
}

// Recorder records one clip per question from the live camera and a
// microphone track acquired once for the whole interview.
type Recorder struct {
	dev MediaDevices

	mu     sync.Mutex
	audio  Track
	active Encoder
}

// NewRecorder acquires the microphone. Without one every Start is a no-op.
func NewRecorder(ctx context.Context, dev MediaDevices) *Recorder {
	r := &Recorder{dev: dev}
	if dev == nil {
		return r
	}
	audio, err := dev.AcquireAudio(ctx)
	if err != nil {
		slog.Warn("microphone unavailable, clips disabled", slog.Any("error", err))
		return r
	}
	r.audio = audio
	return r
}

// HasAudio reports whether clips can be recorded.
func (r *Recorder) HasAudio() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audio != nil
}

// Active reports whether a clip is being recorded.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start begins a clip, aborting any clip in progress. Without a microphone or
// camera it does nothing.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortLocked()
	if r.audio == nil {
		return nil
	}
	video, ok := r.dev.Video(ctx)
	if !ok {
		return nil
	}
	enc, err := r.dev.Record(ctx, []Track{video, r.audio}, r.mimeType())
	if err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}
	r.active = enc
	return nil
}

// Stop finishes the clip in progress.
func (r *Recorder) Stop(ctx context.Context) (interview.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return interview.Clip{}, ErrNotRecording
	}
	enc := r.active
	r.active = nil
	clip, err := enc.Finish(ctx)
	if err != nil {
		return interview.Clip{}, fmt.Errorf("stop recorder: %w", err)
	}
	if clip.ContentType == "" {
		clip.ContentType = defaultClipType
	}
	return clip, nil
}

// Cleanup aborts the clip in progress without producing one.
func (r *Recorder) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortLocked()
}

// Close aborts any clip and releases the microphone.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortLocked()
	if r.audio != nil {
		r.audio.Stop()
		r.audio = nil
	}
}

func (r *Recorder) abortLocked() {
	if r.active != nil {
		r.active.Abort()
		r.active = nil
	}
}

// mimeType is the first supported preferred encoding, or "" for the encoder default.
func (r *Recorder) mimeType() string {
	for _, m := range ClipMimeTypes {
		if r.dev.Supports(m) {
			return m
		}
	}
	return ""
}
