package orchestrator

import (
	"time"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
)

// State is the orchestrator phase for the current question.
type State int

const (
	Idle State = iota
	Speaking
	CountingDown
	Capturing
	Submitting
	FollowUpPending
	Advancing
	Finished
)

var stateNames = [...]string{
	Idle:            "idle",
	Speaking:        "speaking",
	CountingDown:    "counting_down",
	Capturing:       "capturing",
	Submitting:      "submitting",
	FollowUpPending: "followup_pending",
	Advancing:       "advancing",
	Finished:        "finished",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Event is an input to Machine.Dispatch. Results of asynchronous commands
// carry the ticket of the command that produced them.
type Event interface{ isEvent() }

// Start begins the interview at the first question.
type Start struct{}

// Toggle is the user's record button.
type Toggle struct{}

// Submit sends the current answer. A non-empty Text overrides the transcript.
type Submit struct{ Text string }

// Skip abandons the pending or active follow-up question.
type Skip struct{}

// Tick fires when the armed timer expires.
type Tick struct{ Ticket uint64 }

// SpeechDone reports that the question finished playing.
type SpeechDone struct{ Ticket uint64 }

// SpeechFailed reports a synthesis error. It advances like SpeechDone.
type SpeechFailed struct {
	Ticket uint64
	Err    error
}

// TranscriptUpdated carries the live transcript of the active capture.
type TranscriptUpdated struct {
	Ticket uint64
	Text   string
}

// CaptureStopped reports that speech capture ended on its own.
type CaptureStopped struct {
	Ticket uint64
	Text   string
	Err    error
}

// CaptureFinished is the result of a StopCapture command.
type CaptureFinished struct {
	Ticket uint64
	// Text is the final speech transcript; meaningful only when HadSpeech.
	Text      string
	HadSpeech bool
	Clip      *interview.Clip
}

// Scored reports a persisted answer.
type Scored struct {
	Ticket uint64
	Answer *interview.AnswerRecord
}

// ScoreFailed reports a scoring or persistence failure.
type ScoreFailed struct {
	Ticket uint64
	Err    error
}

// FollowUpReady carries a generated follow-up question.
type FollowUpReady struct {
	Ticket   uint64
	Question string
}

// FollowUpFailed reports that no follow-up could be generated.
type FollowUpFailed struct {
	Ticket uint64
	Err    error
}

func (Start) isEvent()             {}
func (Toggle) isEvent()            {}
func (Submit) isEvent()            {}
func (Skip) isEvent()              {}
func (Tick) isEvent()              {}
func (SpeechDone) isEvent()        {}
func (SpeechFailed) isEvent()      {}
func (TranscriptUpdated) isEvent() {}
func (CaptureStopped) isEvent()    {}
func (CaptureFinished) isEvent()   {}
func (Scored) isEvent()            {}
func (ScoreFailed) isEvent()       {}
func (FollowUpReady) isEvent()     {}
func (FollowUpFailed) isEvent()    {}

// Command is an effect requested by the machine and executed by the Runner.
type Command interface{ isCommand() }

// Speak plays text aloud; completion is reported as SpeechDone or SpeechFailed.
type Speak struct {
	Ticket uint64
	Text   string
}

// CancelSpeech stops any playback in progress without reporting completion.
type CancelSpeech struct{}

// ArmTimer replaces the single timer; expiry is reported as Tick.
type ArmTimer struct {
	Ticket uint64
	After  time.Duration
}

// DisarmTimer stops the timer.
type DisarmTimer struct{}

// StartCapture starts speech and video capture.
type StartCapture struct{ Ticket uint64 }

// StopCapture stops both captures. With Discard the video is dropped.
type StopCapture struct {
	Ticket  uint64
	Discard bool
}

// SubmitAnswer scores and persists an answer.
type SubmitAnswer struct {
	Ticket     uint64
	Submission interview.AnswerSubmission
}

// UploadClip hands a clip to the storage boundary. No result is reported.
type UploadClip struct {
	MockID   string
	AnswerID int64
	Clip     interview.Clip
}

// GenerateFollowUp asks for a follow-up to a root answer.
type GenerateFollowUp struct {
	Ticket   uint64
	AnswerID int64
}

// Notify publishes the machine snapshot to the user interface.
type Notify struct{ Snapshot Snapshot }

func (Speak) isCommand()            {}
func (CancelSpeech) isCommand()     {}
func (ArmTimer) isCommand()         {}
func (DisarmTimer) isCommand()      {}
func (StartCapture) isCommand()     {}
func (StopCapture) isCommand()      {}
func (SubmitAnswer) isCommand()     {}
func (UploadClip) isCommand()       {}
func (GenerateFollowUp) isCommand() {}
func (Notify) isCommand()           {}

// Snapshot is the user-visible view of the machine.
type Snapshot struct {
	State      string `json:"state"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Question   string `json:"question,omitempty"`
	FollowUp   bool   `json:"followUp,omitempty"`
	Countdown  int    `json:"countdown,omitempty"`
	Capturing  bool   `json:"capturing"`
	Transcript string `json:"transcript,omitempty"`
	AnswerID   int64  `json:"answerId,omitempty"`
	Error      string `json:"error,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}
