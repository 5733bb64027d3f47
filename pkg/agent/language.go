package agent

import "strings"

// Multilingual means no language constraint on the verbal response.
const Multilingual = "multilingual"

var languages = map[string]string{
	"en":         "english",
	"zh":         "chinese",
	"fr":         "french",
	"de":         "german",
	"it":         "italian",
	"ja":         "japanese",
	"ko":         "korean",
	"ru":         "russian",
	"es":         "spanish",
	"pt":         "portuguese",
	"nl":         "dutch",
	Multilingual: Multilingual,
}

// ResolveLanguage maps a language code or name to its name. An empty
// language is multilingual; an unsupported one reports false.
func ResolveLanguage(lang string) (string, bool) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return Multilingual, true
	}
	if name, ok := languages[lang]; ok {
		return name, true
	}
	for _, name := range languages {
		if name == lang {
			return name, true
		}
	}
	return "", false
}

// responseLanguage picks the language for a turn: the requested one when
// supported, else the configured base language.
func responseLanguage(requested, base string) string {
	if name, ok := ResolveLanguage(requested); ok {
		return name
	}
	if name, ok := ResolveLanguage(base); ok {
		return name
	}
	return Multilingual
}

// verbalHint is appended to the description of the spoken response.
func verbalHint(language string) string {
	if language == "english" || language == Multilingual {
		return ""
	}
	return "(ONLY IN NATIVE " + strings.ToUpper(language) + ")"
}
