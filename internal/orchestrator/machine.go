package orchestrator

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
)

// ErrEmptyAnswer is reported when a submit carries neither typed text nor a transcript.
var ErrEmptyAnswer = interview.ErrEmptyAnswer

// Timing controls the speak and countdown sequence.
type Timing struct {
	Tick          time.Duration // countdown step
	Countdown     int           // number of steps before capture starts
	SpeechFloor   time.Duration
	SpeechPerRune time.Duration
	SpeechGrace   time.Duration
}

// DefaultTiming is a three second countdown and a speech fallback of
// max(4s, 70ms per rune) plus 1.5s.
func DefaultTiming() Timing {
	return Timing{
		Tick:          time.Second,
		Countdown:     3,
		SpeechFloor:   4 * time.Second,
		SpeechPerRune: 70 * time.Millisecond,
		SpeechGrace:   1500 * time.Millisecond,
	}
}

// SpeechTimeout is how long to wait for playback of text before moving on anyway.
func (t Timing) SpeechTimeout(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * t.SpeechPerRune
	return max(d, t.SpeechFloor) + t.SpeechGrace
}

// Config describes one interview run.
type Config struct {
	MockID     string
	Questions  []interview.QuestionItem
	Language   string
	Difficulty interview.Difficulty
	FollowUps  bool
	CanSpeak   bool   // false skips Speaking and goes straight to the countdown
	Timing     Timing // zero value means DefaultTiming
}

type target struct {
	question    string
	modelAnswer string
	parentID    *int64
}

func (t target) followUp() bool { return t.parentID != nil }

// Machine is the per-connection interview state machine. It performs no I/O:
// Dispatch returns the commands the Runner must execute. Not safe for concurrent use.
type Machine struct {
	cfg Config

	state     State
	index     int
	ticket    uint64
	countdown int

	cur        target
	capturing  bool
	prefix     string // transcript kept from before a resumed capture
	transcript string
	typed      string
	answer     string // text of the submission in flight
	clip       *interview.Clip
	rootID     int64
	lastID     int64
	err        error
	retryable  bool // err came from a failed submission
}

// NewMachine returns a machine in Idle.
func NewMachine(cfg Config) *Machine {
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.Timing.Countdown < 1 {
		cfg.Timing.Countdown = 1
	}
	return &Machine{cfg: cfg}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Index() int   { return m.index }

// Ticket is the correlation id expected from the next asynchronous result.
func (m *Machine) Ticket() uint64 { return m.ticket }

type handler func(*Machine, Event) []Command

var transitions = map[State]handler{
	Idle:            (*Machine).idle,
	Speaking:        (*Machine).speaking,
	CountingDown:    (*Machine).countingDown,
	Capturing:       (*Machine).capturingState,
	Submitting:      (*Machine).submitting,
	FollowUpPending: (*Machine).followUpPending,
}

// Dispatch applies ev and returns the resulting commands. Events that do not
// apply to the current state, or whose ticket is stale, are ignored.
func (m *Machine) Dispatch(ev Event) []Command {
	h, ok := transitions[m.state]
	if !ok {
		return nil
	}
	from := m.state
	cmds := h(m, ev)
	if m.state != from {
		slog.Debug("orchestrator transition",
			slog.String("from", from.String()),
			slog.String("to", m.state.String()),
			slog.Int("index", m.index))
	}
	return cmds
}

func (m *Machine) idle(ev Event) []Command {
	if _, ok := ev.(Start); !ok {
		return nil
	}
	if len(m.cfg.Questions) == 0 {
		return m.finish()
	}
	return m.enter(m.root(0))
}

func (m *Machine) speaking(ev Event) []Command {
	switch e := ev.(type) {
	case SpeechDone:
		if e.Ticket == m.ticket {
			return append([]Command{DisarmTimer{}}, m.beginCountdown()...)
		}
	case SpeechFailed:
		if e.Ticket == m.ticket {
			slog.Debug("question playback failed", slog.Any("error", e.Err))
			return append([]Command{DisarmTimer{}}, m.beginCountdown()...)
		}
	case Tick:
		if e.Ticket == m.ticket {
			return append([]Command{CancelSpeech{}}, m.beginCountdown()...)
		}
	default:
		return m.interruptible(ev)
	}
	return nil
}

func (m *Machine) countingDown(ev Event) []Command {
	if e, ok := ev.(Tick); ok {
		if e.Ticket != m.ticket {
			return nil
		}
		m.countdown--
		if m.countdown > 0 {
			m.ticket++
			return []Command{ArmTimer{Ticket: m.ticket, After: m.cfg.Timing.Tick}, m.notify()}
		}
		return m.startCapture(true)
	}
	return m.interruptible(ev)
}

// interruptible handles user input during the speak and countdown sequence.
func (m *Machine) interruptible(ev Event) []Command {
	switch e := ev.(type) {
	case Toggle:
		return append(m.cancelSequence(), m.startCapture(true)...)
	case Submit:
		cmds := m.cancelSequence()
		m.transcript, m.prefix = "", ""
		return append(cmds, m.beginSubmit(e.Text)...)
	case Skip:
		if m.cur.followUp() {
			return append(m.cancelSequence(), m.advance()...)
		}
	}
	return nil
}

func (m *Machine) capturingState(ev Event) []Command {
	switch e := ev.(type) {
	case TranscriptUpdated:
		if e.Ticket == m.ticket && m.capturing {
			m.transcript = joinText(m.prefix, e.Text)
			return []Command{m.notify()}
		}
	case CaptureStopped:
		if e.Ticket == m.ticket && m.capturing {
			m.transcript = joinText(m.prefix, e.Text)
			m.capturing = false
			m.err, m.retryable = e.Err, false
			slog.Debug("speech capture ended", slog.Any("error", e.Err))
			return []Command{m.notify()}
		}
	case CaptureFinished:
		if e.Ticket == m.ticket && e.HadSpeech {
			m.transcript = joinText(m.prefix, e.Text)
			return []Command{m.notify()}
		}
	case Toggle:
		if m.capturing {
			m.capturing = false
			m.ticket++
			return []Command{StopCapture{Ticket: m.ticket, Discard: true}, m.notify()}
		}
		return m.startCapture(false)
	case Submit:
		return m.beginSubmit(e.Text)
	case Skip:
		if m.cur.followUp() {
			m.ticket++
			return append([]Command{StopCapture{Ticket: m.ticket, Discard: true}}, m.advance()...)
		}
	}
	return nil
}

func (m *Machine) submitting(ev Event) []Command {
	switch e := ev.(type) {
	case CaptureFinished:
		if e.Ticket != m.ticket {
			return nil
		}
		if e.HadSpeech {
			m.transcript = joinText(m.prefix, e.Text)
		}
		if e.Clip != nil {
			m.clip = e.Clip
		}
		answer := m.typed
		if answer == "" {
			answer = strings.TrimSpace(m.transcript)
		}
		if answer == "" {
			m.state = Capturing
			m.err, m.retryable = ErrEmptyAnswer, false
			return []Command{m.notify()}
		}
		m.answer = answer
		m.ticket++
		return []Command{SubmitAnswer{Ticket: m.ticket, Submission: m.submission(answer)}, m.notify()}
	case Scored:
		if e.Ticket != m.ticket || e.Answer == nil {
			return nil
		}
		return m.accepted(e.Answer)
	case ScoreFailed:
		if e.Ticket != m.ticket {
			return nil
		}
		m.state = Capturing
		m.capturing = false
		m.transcript = m.answer
		m.prefix = ""
		m.err, m.retryable = e.Err, true
		return []Command{m.notify()}
	}
	return nil
}

func (m *Machine) followUpPending(ev Event) []Command {
	switch e := ev.(type) {
	case FollowUpReady:
		if e.Ticket == m.ticket {
			parent := m.rootID
			return m.enter(target{question: e.Question, parentID: &parent})
		}
	case FollowUpFailed:
		if e.Ticket == m.ticket {
			slog.Debug("follow-up unavailable", slog.Any("error", e.Err))
			return m.advance()
		}
	case Skip:
		m.ticket++
		return m.advance()
	}
	return nil
}

// accepted runs after an answer is scored and persisted.
func (m *Machine) accepted(rec *interview.AnswerRecord) []Command {
	var cmds []Command
	m.err = nil
	m.lastID = rec.ID
	if m.clip != nil {
		cmds = append(cmds, UploadClip{MockID: m.cfg.MockID, AnswerID: rec.ID, Clip: *m.clip})
		m.clip = nil
	}
	if !m.cur.followUp() && m.cfg.FollowUps {
		m.rootID = rec.ID
		m.state = FollowUpPending
		m.ticket++
		return append(cmds, GenerateFollowUp{Ticket: m.ticket, AnswerID: rec.ID}, m.notify())
	}
	return append(cmds, m.advance()...)
}

func (m *Machine) root(i int) target {
	q := m.cfg.Questions[i]
	return target{question: q.Question, modelAnswer: q.Answer}
}

// enter starts the sequence for a question.
func (m *Machine) enter(t target) []Command {
	m.cur = t
	m.transcript, m.prefix, m.typed, m.answer = "", "", "", ""
	m.capturing = false
	m.clip = nil
	m.err = nil
	if !m.cfg.CanSpeak {
		return m.beginCountdown()
	}
	m.state = Speaking
	m.ticket++
	return []Command{
		Speak{Ticket: m.ticket, Text: t.question},
		ArmTimer{Ticket: m.ticket, After: m.cfg.Timing.SpeechTimeout(t.question)},
		m.notify(),
	}
}

func (m *Machine) beginCountdown() []Command {
	m.state = CountingDown
	m.countdown = m.cfg.Timing.Countdown
	m.ticket++
	return []Command{ArmTimer{Ticket: m.ticket, After: m.cfg.Timing.Tick}, m.notify()}
}

func (m *Machine) cancelSequence() []Command {
	m.ticket++
	return []Command{CancelSpeech{}, DisarmTimer{}}
}

// startCapture begins a capture. A cleared capture starts from an empty
// transcript; otherwise new speech is appended to the current one.
func (m *Machine) startCapture(clear bool) []Command {
	m.state = Capturing
	m.capturing = true
	m.err = nil
	m.clip = nil
	if clear {
		m.transcript = ""
	}
	m.prefix = m.transcript
	m.ticket++
	return []Command{StartCapture{Ticket: m.ticket}, m.notify()}
}

func (m *Machine) beginSubmit(text string) []Command {
	m.typed = strings.TrimSpace(text)
	m.state = Submitting
	m.capturing = false
	m.err = nil
	m.ticket++
	return []Command{StopCapture{Ticket: m.ticket}, m.notify()}
}

func (m *Machine) advance() []Command {
	m.state = Advancing
	cmds := []Command{m.notify()}
	m.index++
	if m.index >= len(m.cfg.Questions) {
		return append(cmds, m.finish()...)
	}
	return append(cmds, m.enter(m.root(m.index))...)
}

func (m *Machine) finish() []Command {
	m.state = Finished
	m.cur = target{}
	m.capturing = false
	return []Command{DisarmTimer{}, m.notify()}
}

func (m *Machine) submission(answer string) interview.AnswerSubmission {
	return interview.AnswerSubmission{
		MockID:         m.cfg.MockID,
		Question:       m.cur.question,
		ModelAnswer:    m.cur.modelAnswer,
		UserAnswer:     answer,
		Language:       m.cfg.Language,
		ParentAnswerID: m.cur.parentID,
		Difficulty:     m.cfg.Difficulty,
	}
}

func (m *Machine) notify() Command { return Notify{Snapshot: m.Snapshot()} }

// Snapshot returns the user-visible state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:      m.state.String(),
		Index:      m.index,
		Total:      len(m.cfg.Questions),
		Question:   m.cur.question,
		FollowUp:   m.cur.followUp(),
		Capturing:  m.capturing,
		Transcript: m.transcript,
		AnswerID:   m.lastID,
	}
	if m.state == CountingDown {
		s.Countdown = m.countdown
	}
	if m.err != nil {
		s.Error = m.err.Error()
		s.Retryable = m.retryable
	}
	return s
}

func joinText(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
