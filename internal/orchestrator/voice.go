package orchestrator

import (
	"cmp"
	"slices"
	"strings"

	"github.com/anatolykoptev/go_interview/internal/engine"
)

// Gender is the preferred interviewer voice.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// ParseGender defaults to female.
func ParseGender(s string) Gender {
	if strings.EqualFold(strings.TrimSpace(s), string(GenderMale)) {
		return GenderMale
	}
	return GenderFemale
}

// Voice is a synthesis voice installed on the user's device.
type Voice struct {
	Name  string `json:"name"`
	URI   string `json:"voiceURI"`
	Lang  string `json:"lang"`
	Local bool   `json:"localService"`
}

var femaleVoiceNames = []string{
	"jenny", "zira", "aria", "sara", "samantha", "karen", "moira", "tessa",
	"fiona", "victoria", "ava", "susan", "hazel", "catherine", "kate",
	"emily", "siri female", "google uk english female", "female",
}

var maleVoiceNames = []string{
	"guy", "david", "mark", "james", "daniel", "george", "alex", "fred",
	"tom", "ralph", "bruce", "lee", "ryan", "rishi", "aaron",
	"siri male", "google uk english male", "male",
}

// ClassifyVoice guesses a voice's gender from its name.
func ClassifyVoice(v Voice) (Gender, bool) {
	name := strings.ToLower(v.Name)
	if containsAny(name, femaleVoiceNames) {
		return GenderFemale, true
	}
	if containsAny(name, maleVoiceNames) {
		return GenderMale, true
	}
	return "", false
}

// VoiceQuality ranks voices; higher sounds better.
func VoiceQuality(v Voice) int {
	name := strings.ToLower(v.Name)
	score := 0
	if strings.Contains(name, "online") || strings.Contains(name, "neural") {
		score += 20
	}
	if strings.Contains(name, "premium") {
		score += 15
	}
	if !v.Local || strings.Contains(name, "enhanced") {
		score += 10
	}
	if strings.Contains(name, "microsoft") {
		score += 5
	}
	if strings.Contains(name, "google") {
		score += 3
	}
	return score
}

// SelectVoice picks the best voice for lang, preferring the given gender,
// then voices of unknown gender, then anything in the language.
func SelectVoice(voices []Voice, lang string, preferred Gender) (Voice, bool) {
	want := engine.NormLang(lang)
	var pool, matched, unknown []Voice
	for _, v := range voices {
		if v.Lang == "" || engine.NormLang(v.Lang) != want {
			continue
		}
		pool = append(pool, v)
		switch g, ok := ClassifyVoice(v); {
		case !ok:
			unknown = append(unknown, v)
		case g == preferred:
			matched = append(matched, v)
		}
	}
	for _, candidates := range [][]Voice{matched, unknown, pool} {
		if len(candidates) > 0 {
			return best(candidates), true
		}
	}
	return Voice{}, false
}

func best(voices []Voice) Voice {
	slices.SortStableFunc(voices, func(a, b Voice) int {
		return cmp.Compare(VoiceQuality(b), VoiceQuality(a))
	})
	return voices[0]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
