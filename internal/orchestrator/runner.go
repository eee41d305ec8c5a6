package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Send after Run has returned.
var ErrStopped = errors.New("orchestrator stopped")

const (
	defaultUploadTimeout = 2 * time.Minute
	deviceQueueSize      = 64
)

// Runner executes a Machine. One goroutine (Run) owns the machine, the timer
// and playback; device start/stop calls run in order on a worker goroutine;
// service calls run in their own goroutines. All results come back as events.
type Runner struct {
	m *Machine
	s *Session
	p Ports

	// UploadTimeout bounds each detached clip upload.
	UploadTimeout time.Duration

	events  chan Event
	done    chan struct{}
	devices chan func(context.Context)

	timer       *time.Timer
	timerC      <-chan time.Time
	timerTicket uint64
	cancelSpeak context.CancelFunc

	speech  *SpeechHandle // owned by the device worker
	uploads sync.WaitGroup
}

// NewRunner wires a machine to its ports. Run must be called exactly once.
func NewRunner(m *Machine, s *Session, p Ports) *Runner {
	if s == nil {
		s = NewSession("", GenderFemale)
	}
	return &Runner{
		m:             m,
		s:             s,
		p:             p,
		UploadTimeout: defaultUploadTimeout,
		events:        make(chan Event, 16),
		done:          make(chan struct{}),
		devices:       make(chan func(context.Context), deviceQueueSize),
	}
}

// Send delivers a user event to the running machine.
func (r *Runner) Send(ctx context.Context, ev Event) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Wait blocks until detached clip uploads have finished.
func (r *Runner) Wait() { r.uploads.Wait() }

// Run processes events until the interview finishes or ctx is cancelled.
// On return the timer is stopped, capture is stopped and the microphone released.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var worker sync.WaitGroup
	worker.Add(1)
	go func() {
		defer worker.Done()
		for op := range r.devices {
			op(ctx)
		}
	}()
	defer func() {
		close(r.done)
		cancel()
		close(r.devices)
		worker.Wait()
		r.teardown()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.apply(ctx, ev)
		case <-r.timerC:
			r.timerC = nil
			r.apply(ctx, Tick{Ticket: r.timerTicket})
		}
		if r.m.State() == Finished {
			return nil
		}
	}
}

func (r *Runner) apply(ctx context.Context, ev Event) {
	for _, c := range r.m.Dispatch(ev) {
		r.exec(ctx, c)
	}
}

func (r *Runner) exec(ctx context.Context, c Command) {
	switch c := c.(type) {
	case Speak:
		r.startSpeaking(ctx, c)
	case CancelSpeech:
		r.stopSpeaking()
	case ArmTimer:
		r.arm(c.Ticket, c.After)
	case DisarmTimer:
		r.disarm()
	case StartCapture:
		r.device(ctx, func(ctx context.Context) { r.startCapture(ctx, c.Ticket) })
	case StopCapture:
		r.device(ctx, func(ctx context.Context) { r.stopCapture(ctx, c) })
	case SubmitAnswer:
		go func() {
			rec, err := r.p.Backend.SubmitAnswer(ctx, c.Submission)
			if err != nil {
				slog.Warn("answer not accepted", slog.String("mock_id", c.Submission.MockID), slog.Any("error", err))
				r.post(ScoreFailed{Ticket: c.Ticket, Err: err})
				return
			}
			r.post(Scored{Ticket: c.Ticket, Answer: rec})
		}()
	case GenerateFollowUp:
		go func() {
			q, err := r.p.Backend.FollowUp(ctx, c.AnswerID)
			if err != nil {
				r.post(FollowUpFailed{Ticket: c.Ticket, Err: err})
				return
			}
			r.post(FollowUpReady{Ticket: c.Ticket, Question: q})
		}()
	case UploadClip:
		r.upload(ctx, c)
	case Notify:
		if r.p.Notify != nil {
			r.p.Notify(c.Snapshot)
		}
	default:
		slog.Error("unknown orchestrator command", slog.Any("command", c))
	}
}

// post hands a result back to the loop; it gives up once Run has returned.
func (r *Runner) post(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Runner) device(ctx context.Context, op func(context.Context)) {
	select {
	case r.devices <- op:
	case <-ctx.Done():
	}
}

func (r *Runner) arm(ticket uint64, d time.Duration) {
	if r.timer == nil {
		r.timer = time.NewTimer(d)
	} else {
		r.timer.Reset(d)
	}
	r.timerC = r.timer.C
	r.timerTicket = ticket
}

func (r *Runner) disarm() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timerC = nil
}

func (r *Runner) startSpeaking(ctx context.Context, c Speak) {
	r.stopSpeaking()
	sctx, cancel := context.WithCancel(ctx)
	r.cancelSpeak = cancel
	go func() {
		err := r.speak(sctx, c.Text)
		if sctx.Err() != nil {
			return
		}
		if err != nil {
			r.post(SpeechFailed{Ticket: c.Ticket, Err: err})
			return
		}
		r.post(SpeechDone{Ticket: c.Ticket})
	}()
}

func (r *Runner) stopSpeaking() {
	if r.cancelSpeak != nil {
		r.cancelSpeak()
		r.cancelSpeak = nil
	}
}

// speak plays text with the session's local voice, or with server-side audio
// when no local voice fits the language.
func (r *Runner) speak(ctx context.Context, text string) error {
	if r.p.Synth == nil || !r.p.Synth.Available() {
		return ErrSynthUnavailable
	}
	u := Utterance{Text: text, Lang: r.s.Language}
	if v, ok := r.s.Voice(); ok {
		u.VoiceURI = v.URI
	} else if r.p.Remote != nil {
		audio, ctype, err := r.p.Remote.Synthesize(ctx, text, r.s.Language, r.s.Gender)
		if err != nil {
			slog.Warn("remote synthesis failed, using device default voice", slog.Any("error", err))
		} else {
			u.Audio, u.AudioType = audio, ctype
		}
	}
	return r.p.Synth.Speak(ctx, u)
}

func (r *Runner) startCapture(ctx context.Context, ticket uint64) {
	r.stopSpeech()
	if r.p.Recorder != nil {
		if err := r.p.Recorder.Start(ctx); err != nil {
			slog.Warn("video capture failed to start", slog.Any("error", err))
		}
	}
	if !r.p.Speech.Available() {
		return
	}
	h, err := r.p.Speech.Start(ctx, r.s.Language)
	if err != nil {
		r.post(CaptureStopped{Ticket: ticket, Err: err})
		return
	}
	r.speech = h
	go r.forward(h, ticket)
}

func (r *Runner) forward(h *SpeechHandle, ticket uint64) {
	for u := range h.Updates() {
		if u.Done {
			r.post(CaptureStopped{Ticket: ticket, Text: u.Text, Err: u.Err})
			continue
		}
		r.post(TranscriptUpdated{Ticket: ticket, Text: u.Text})
	}
}

func (r *Runner) stopCapture(ctx context.Context, c StopCapture) {
	ev := CaptureFinished{Ticket: c.Ticket}
	if r.speech != nil {
		ev.Text = r.speech.Stop()
		ev.HadSpeech = true
		r.speech = nil
	}
	if rec := r.p.Recorder; rec != nil {
		if c.Discard {
			rec.Cleanup()
		} else {
			clip, err := rec.Stop(ctx)
			switch {
			case err == nil && len(clip.Data) > 0:
				ev.Clip = &clip
			case err == nil, errors.Is(err, ErrNotRecording):
			default:
				slog.Warn("video capture failed to stop", slog.Any("error", err))
			}
		}
	}
	r.post(ev)
}

func (r *Runner) stopSpeech() {
	if r.speech != nil {
		r.speech.Stop()
		r.speech = nil
	}
}

// upload runs detached from the connection so a closed tab does not lose the clip.
func (r *Runner) upload(ctx context.Context, c UploadClip) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.UploadTimeout)
	r.uploads.Add(1)
	go func() {
		defer r.uploads.Done()
		defer cancel()
		url, err := r.p.Backend.UploadClip(uctx, c.MockID, c.AnswerID, c.Clip)
		if err != nil {
			slog.Warn("clip upload failed",
				slog.String("mock_id", c.MockID),
				slog.Int64("answer_id", c.AnswerID),
				slog.Any("error", err))
			return
		}
		slog.Debug("clip uploaded", slog.Int64("answer_id", c.AnswerID), slog.String("url", url))
	}()
}

func (r *Runner) teardown() {
	r.disarm()
	r.stopSpeaking()
	r.stopSpeech()
	if r.p.Recorder != nil {
		r.p.Recorder.Close()
	}
}
