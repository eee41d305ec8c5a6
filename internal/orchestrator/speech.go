package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrSpeechUnavailable means the device has no speech recognition; answers are typed.
	ErrSpeechUnavailable = errors.New("speech recognition unavailable")
	// ErrCaptureInterrupted wraps a fatal end reason reported by the provider.
	ErrCaptureInterrupted = errors.New("speech capture interrupted")
	// ErrRestartLimit stops a capture that kept timing out.
	ErrRestartLimit = errors.New("speech capture restart limit reached")
)

// Provider end reasons.
const (
	EndNormal            = ""
	EndNoSpeech          = "no-speech"
	EndAborted           = "aborted"
	EndNotAllowed        = "not-allowed"
	EndServiceNotAllowed = "service-not-allowed"
	EndAudioCapture      = "audio-capture"
	EndNetwork           = "network"
)

const (
	defaultRestartDelay = 300 * time.Millisecond
	defaultMaxRestarts  = 5
)

// RecognitionEvent is one provider notification.
type RecognitionEvent struct {
	// Transcript is all text recognized in this provider session so far, in order.
	Transcript string
	End        bool
	Reason     string
}

// RecognitionSession is one continuous provider session.
type RecognitionSession interface {
	// Events is closed after the end event or after Close.
	Events() <-chan RecognitionEvent
	Close()
}

// Recognizer opens provider sessions.
type Recognizer interface {
	Available() bool
	Open(ctx context.Context, lang string) (RecognitionSession, error)
}

func recoverable(reason string) bool {
	switch reason {
	case EndNormal, EndNoSpeech, EndAborted:
		return true
	}
	return false
}

// SpeechCapture turns provider sessions into one continuous transcript,
// restarting the provider when it times out.
type SpeechCapture struct {
	rec       Recognizer
	available bool

	RestartDelay time.Duration
	MaxRestarts  int
}

// NewSpeechCapture detects availability once. A nil recognizer is unavailable.
func NewSpeechCapture(rec Recognizer) *SpeechCapture {
	return &SpeechCapture{
		rec:          rec,
		available:    rec != nil && rec.Available(),
		RestartDelay: defaultRestartDelay,
		MaxRestarts:  defaultMaxRestarts,
	}
}

func (c *SpeechCapture) Available() bool { return c != nil && c.available }

// TranscriptUpdate is the live transcript. Done marks the last update of a
// capture that ended on its own; Err says why.
type TranscriptUpdate struct {
	Text string
	Done bool
	Err  error
}

// SpeechHandle is one active capture.
type SpeechHandle struct {
	updates  chan TranscriptUpdate
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	final    string
}

// Start opens a capture in lang.
func (c *SpeechCapture) Start(ctx context.Context, lang string) (*SpeechHandle, error) {
	if !c.Available() {
		return nil, ErrSpeechUnavailable
	}
	sess, err := c.rec.Open(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("open recognition: %w", err)
	}
	h := &SpeechHandle{
		updates: make(chan TranscriptUpdate),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go h.run(ctx, c, lang, sess)
	return h, nil
}

// Updates delivers transcript updates until the capture ends. The channel is
// closed afterwards.
func (h *SpeechHandle) Updates() <-chan TranscriptUpdate { return h.updates }

// Stop ends the capture and returns the final transcript. Once Stop returns no
// further update is delivered. Safe to call more than once.
func (h *SpeechHandle) Stop() string {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
	return h.final
}

func (h *SpeechHandle) run(ctx context.Context, c *SpeechCapture, lang string, sess RecognitionSession) {
	defer close(h.done)
	defer close(h.updates)

	var acc, current string
	restarts := 0
	quit := func() {
		sess.Close()
		h.final = joinText(acc, current)
	}

	for {
		select {
		case <-h.stop:
			quit()
			return
		case <-ctx.Done():
			quit()
			return
		case ev, ok := <-sess.Events():
			if !ok {
				ev = RecognitionEvent{End: true}
			}
			if !ev.End {
				current = ev.Transcript
				if !h.send(ctx, TranscriptUpdate{Text: joinText(acc, current)}) {
					quit()
					return
				}
				continue
			}
			if ev.Transcript != "" {
				current = ev.Transcript
			}
			acc, current = joinText(acc, current), ""
			sess.Close()

			var err error
			switch {
			case !recoverable(ev.Reason):
				err = fmt.Errorf("%w: %s", ErrCaptureInterrupted, ev.Reason)
			case restarts >= c.MaxRestarts:
				err = ErrRestartLimit
			}
			if err == nil {
				restarts++
				sess, err = h.reopen(ctx, c, lang)
				if sess == nil && err == nil {
					h.final = acc
					return
				}
			}
			if err != nil {
				h.final = acc
				h.send(ctx, TranscriptUpdate{Text: acc, Done: true, Err: err})
				return
			}
		}
	}
}

// reopen waits out the throttle delay and opens a fresh provider session.
// It returns nil, nil when the capture was stopped while waiting.
func (h *SpeechHandle) reopen(ctx context.Context, c *SpeechCapture, lang string) (RecognitionSession, error) {
	t := time.NewTimer(c.RestartDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-h.stop:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
	sess, err := c.rec.Open(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("restart recognition: %w", err)
	}
	return sess, nil
}

func (h *SpeechHandle) send(ctx context.Context, u TranscriptUpdate) bool {
	select {
	case h.updates <- u:
		return true
	case <-h.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
