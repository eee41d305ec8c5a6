// Package bridge connects an interview orchestrator to the browser tab that
// owns the user's camera, microphone, speech recognition and speech synthesis.
//
// Every frame is a JSON Message. The browser answers server requests with a
// "reply" carrying the request ID.
package bridge

import (
	"encoding/json"

	"github.com/anatolykoptev/go_interview/internal/orchestrator"
)

// MessageType names a frame.
type MessageType string

const (
	// Browser to server.
	TypeHello       MessageType = "hello"       // Data: Hello
	TypeVoices      MessageType = "voices"      // Data: []orchestrator.Voice
	TypeStart       MessageType = "start"       // no data
	TypeToggle      MessageType = "toggle"      // no data
	TypeSubmit      MessageType = "submit"      // Data: SubmitData
	TypeSkip        MessageType = "skip"        // no data
	TypeReply       MessageType = "reply"       // ID of the request; Data or Error
	TypeRecognition MessageType = "recognition" // ID of the session; Data: RecognitionData

	// Server to browser.
	TypeReady            MessageType = "ready"             // Data: Ready
	TypeState            MessageType = "state"             // Data: orchestrator.Snapshot
	TypeSpeak            MessageType = "speak"             // request; Data: SpeakData
	TypeSpeakCancel      MessageType = "speak.cancel"      // ID of the speak request
	TypeRecognitionOpen  MessageType = "recognition.open"  // request; Data: OpenData
	TypeRecognitionClose MessageType = "recognition.close" // ID of the session
	TypeAcquireAudio     MessageType = "media.audio"       // request; reply Data: TrackData
	TypeVideo            MessageType = "media.video"       // request; reply Data: TrackData
	TypeRecord           MessageType = "media.record"      // request; Data: RecordData
	TypeFinish           MessageType = "media.finish"      // request; ID of the encoder; reply Data: ClipData
	TypeAbort            MessageType = "media.abort"       // ID of the encoder
	TypeTrackStop        MessageType = "media.track_stop"  // ID of the track
	TypeError            MessageType = "error"             // Error
)

// Message is one WebSocket frame.
type Message struct {
	Type  MessageType     `json:"type"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Capabilities are detected by the browser once per tab.
type Capabilities struct {
	Synthesis   bool     `json:"synthesis"`
	Recognition bool     `json:"recognition"`
	Recording   bool     `json:"recording"`
	MimeTypes   []string `json:"mimeTypes,omitempty"`
}

// Hello is the first browser frame.
type Hello struct {
	Language     string               `json:"language,omitempty"`
	Gender       string               `json:"gender,omitempty"`
	Voices       []orchestrator.Voice `json:"voices,omitempty"`
	Capabilities Capabilities         `json:"capabilities"`
}

// Ready tells the browser the interview can start.
type Ready struct {
	MockID      string `json:"mockId"`
	JobPosition string `json:"jobPosition,omitempty"`
	Total       int    `json:"total"`
	Language    string `json:"language"`
	FollowUps   bool   `json:"followUps"`
}

type SubmitData struct {
	Text string `json:"text,omitempty"`
}

type SpeakData struct {
	Text      string `json:"text"`
	Lang      string `json:"lang"`
	VoiceURI  string `json:"voiceURI,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	AudioType string `json:"audioType,omitempty"`
}

type OpenData struct {
	Lang string `json:"lang"`
}

// RecognitionData mirrors orchestrator.RecognitionEvent.
type RecognitionData struct {
	Transcript string `json:"transcript,omitempty"`
	End        bool   `json:"end,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type TrackData struct {
	Track string `json:"track,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

type RecordData struct {
	Tracks   []string `json:"tracks"`
	MimeType string   `json:"mimeType,omitempty"`
}

type ClipData struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType,omitempty"`
}
