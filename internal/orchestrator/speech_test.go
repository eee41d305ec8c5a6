package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRecognizer hands out one scripted session per Open call. Once the
// scripts run out, sessions stay silent.
type scriptedRecognizer struct {
	mu      sync.Mutex
	scripts [][]RecognitionEvent
	opens   int
	closed  int
	openErr error
}

type scriptedSession struct {
	events chan RecognitionEvent
	rec    *scriptedRecognizer
	once   sync.Once
}

func (r *scriptedRecognizer) Available() bool { return true }

func (r *scriptedRecognizer) Open(_ context.Context, _ string) (RecognitionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	var script []RecognitionEvent
	if r.opens < len(r.scripts) {
		script = r.scripts[r.opens]
	}
	r.opens++
	s := &scriptedSession{events: make(chan RecognitionEvent, len(script)+1), rec: r}
	for _, ev := range script {
		s.events <- ev
	}
	return s, nil
}

func (r *scriptedRecognizer) counts() (opens, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens, r.closed
}

func (s *scriptedSession) Events() <-chan RecognitionEvent { return s.events }

func (s *scriptedSession) Close() {
	s.once.Do(func() {
		s.rec.mu.Lock()
		s.rec.closed++
		s.rec.mu.Unlock()
	})
}

func timeoutSession(text string) []RecognitionEvent {
	return []RecognitionEvent{
		{Transcript: text},
		{End: true, Reason: EndNoSpeech},
	}
}

func newTestCapture(rec Recognizer) *SpeechCapture {
	c := NewSpeechCapture(rec)
	c.RestartDelay = time.Millisecond
	return c
}

// collect reads updates until the capture ends on its own.
func collect(t *testing.T, h *SpeechHandle) []TranscriptUpdate {
	t.Helper()
	var out []TranscriptUpdate
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-h.Updates():
			if !ok {
				return out
			}
			out = append(out, u)
		case <-deadline:
			t.Fatal("capture did not end")
		}
	}
}

func TestSpeechCapture_Unavailable(t *testing.T) {
	c := NewSpeechCapture(nil)
	assert.False(t, c.Available())
	_, err := c.Start(context.Background(), "en")
	assert.ErrorIs(t, err, ErrSpeechUnavailable)

	var nilCapture *SpeechCapture
	assert.False(t, nilCapture.Available())
}

func TestSpeechCapture_AccumulatesAcrossRestartsAndStopsOnSixth(t *testing.T) {
	rec := &scriptedRecognizer{}
	parts := []string{"one", "two", "three", "four", "five", "six"}
	for _, p := range parts {
		rec.scripts = append(rec.scripts, timeoutSession(p))
	}
	h, err := newTestCapture(rec).Start(context.Background(), "en")
	require.NoError(t, err)

	updates := collect(t, h)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.True(t, last.Done)
	assert.ErrorIs(t, last.Err, ErrRestartLimit)
	assert.Equal(t, "one two three four five six", last.Text)

	// Live updates only ever grow: earlier segments are never dropped.
	for i := 1; i < len(updates); i++ {
		assert.Contains(t, updates[i].Text, updates[i-1].Text)
	}
	assert.Equal(t, "one two", updates[1].Text)

	opens, closed := rec.counts()
	assert.Equal(t, 6, opens)
	assert.Equal(t, 6, closed)
	assert.Equal(t, "one two three four five six", h.Stop())
}

func TestSpeechCapture_FatalStopsImmediately(t *testing.T) {
	for _, reason := range []string{EndNotAllowed, EndServiceNotAllowed, EndAudioCapture, EndNetwork, "something-new"} {
		t.Run(reason, func(t *testing.T) {
			rec := &scriptedRecognizer{scripts: [][]RecognitionEvent{{
				{Transcript: "hello"},
				{End: true, Reason: reason},
			}}}
			h, err := newTestCapture(rec).Start(context.Background(), "en")
			require.NoError(t, err)

			updates := collect(t, h)
			last := updates[len(updates)-1]
			assert.True(t, last.Done)
			assert.ErrorIs(t, last.Err, ErrCaptureInterrupted)
			assert.Equal(t, "hello", last.Text)

			opens, _ := rec.counts()
			assert.Equal(t, 1, opens)
		})
	}
}

func TestSpeechCapture_NormalEndRestarts(t *testing.T) {
	rec := &scriptedRecognizer{scripts: [][]RecognitionEvent{
		{{Transcript: "first"}, {End: true}},
		{{Transcript: "second"}},
	}}
	h, err := newTestCapture(rec).Start(context.Background(), "en")
	require.NoError(t, err)

	var got []string
	for u := range h.Updates() {
		got = append(got, u.Text)
		if u.Text == "first second" {
			break
		}
	}
	assert.Equal(t, []string{"first", "first second"}, got)
	assert.Equal(t, "first second", h.Stop())
}

func TestSpeechCapture_StopIsFinal(t *testing.T) {
	rec := &scriptedRecognizer{scripts: [][]RecognitionEvent{{{Transcript: "partial"}}}}
	h, err := newTestCapture(rec).Start(context.Background(), "en")
	require.NoError(t, err)

	u := <-h.Updates()
	assert.Equal(t, "partial", u.Text)

	assert.Equal(t, "partial", h.Stop())
	_, ok := <-h.Updates()
	assert.False(t, ok, "no update after Stop")
	assert.Equal(t, "partial", h.Stop())

	_, closed := rec.counts()
	assert.Equal(t, 1, closed)
}

func TestSpeechCapture_RestartOpenFailure(t *testing.T) {
	rec := &scriptedRecognizer{scripts: [][]RecognitionEvent{timeoutSession("kept")}}
	c := newTestCapture(rec)
	h, err := c.Start(context.Background(), "en")
	require.NoError(t, err)
	rec.mu.Lock()
	rec.openErr = errors.New("mic busy")
	rec.mu.Unlock()

	updates := collect(t, h)
	last := updates[len(updates)-1]
	assert.True(t, last.Done)
	assert.ErrorContains(t, last.Err, "mic busy")
	assert.Equal(t, "kept", last.Text)
}

func TestSpeechCapture_ContextCancel(t *testing.T) {
	rec := &scriptedRecognizer{}
	ctx, cancel := context.WithCancel(context.Background())
	h, err := newTestCapture(rec).Start(ctx, "en")
	require.NoError(t, err)
	cancel()
	_, ok := <-h.Updates()
	assert.False(t, ok)
	assert.Equal(t, "", h.Stop())
}
