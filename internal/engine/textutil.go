package engine

import (
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// UserAgent identifies outbound fetches.
const UserAgent = "GoInterview/1.0 (+reference-fetch)"

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// TruncateAtWord truncates a string to maxLen runes at a word boundary.
func TruncateAtWord(s string, maxLen int) string {
	return strutil.TruncateAtWord(s, maxLen)
}

// NormLang returns the primary subtag of a BCP 47 tag, lowercased: "en-US" → "en".
// Empty input yields "en".
func NormLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en"
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

// LanguageName maps a primary subtag to the English name used in prompts.
func LanguageName(lang string) string {
	switch NormLang(lang) {
	case "en":
		return "English"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "pt":
		return "Portuguese"
	case "it":
		return "Italian"
	case "ru":
		return "Russian"
	case "zh":
		return "Chinese"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	case "hi":
		return "Hindi"
	case "ar":
		return "Arabic"
	default:
		return lang
	}
}

// CollapseSpaces trims s and folds runs of whitespace into single spaces.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
