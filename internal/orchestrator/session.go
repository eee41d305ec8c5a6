package orchestrator

import (
	"slices"
	"sync"

	"github.com/anatolykoptev/go_interview/internal/engine"
)

// Session is the per-connection context: language, preferred voice gender and
// the voices the device reported.
type Session struct {
	Language string
	Gender   Gender

	mu       sync.Mutex
	voices   []Voice
	chosen   Voice
	hasVoice bool
	resolved bool
}

// NewSession normalizes lang to its primary subtag.
func NewSession(lang string, gender Gender) *Session {
	if gender == "" {
		gender = GenderFemale
	}
	return &Session{Language: engine.NormLang(lang), Gender: gender}
}

// SetVoices replaces the device voice list. Devices often report voices late.
func (s *Session) SetVoices(voices []Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = slices.Clone(voices)
	s.resolved = false
}

// Voice returns the selected local voice, if any fits the session language.
func (s *Session) Voice() (Voice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolved {
		s.chosen, s.hasVoice = SelectVoice(s.voices, s.Language, s.Gender)
		s.resolved = true
	}
	return s.chosen, s.hasVoice
}
