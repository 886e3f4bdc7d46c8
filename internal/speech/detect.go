package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// Language is the outcome of script detection on reply text.
type Language struct {
	Tag  string // BCP-47, e.g. "hi-IN"
	Name string // human-readable, e.g. "Hindi"
}

// IsOdia reports whether the detected script is Odia, which needs
// special voice fallback handling (see Select).
func (l Language) IsOdia() bool {
	return l.Tag == "or-IN"
}

// scriptEntry maps a Unicode script to a language tag. First match in
// order wins, so mixed-script text resolves to the earliest listed
// script it contains. This is a heuristic, not a classifier.
type scriptEntry struct {
	script *unicode.RangeTable
	tag    string
	name   string
}

var scriptOrder = []scriptEntry{
	{unicode.Devanagari, "hi-IN", "Hindi"},
	{unicode.Oriya, "or-IN", "Odia"},
	{unicode.Bengali, "bn-IN", "Bengali"},
	{unicode.Tamil, "ta-IN", "Tamil"},
	{unicode.Telugu, "te-IN", "Telugu"},
	{unicode.Kannada, "kn-IN", "Kannada"},
	{unicode.Malayalam, "ml-IN", "Malayalam"},
	{unicode.Gujarati, "gu-IN", "Gujarati"},
	{unicode.Gurmukhi, "pa-IN", "Punjabi"},
	{unicode.Arabic, "ur-IN", "Urdu"},
}

// DefaultLanguage is assumed when no known script is present.
var DefaultLanguage = Language{Tag: "en-IN", Name: "English"}

// DetectLanguage scans text against an ordered list of Unicode scripts
// and returns the first matching language, or DefaultLanguage.
func DetectLanguage(text string) Language {
	for _, entry := range scriptOrder {
		for _, r := range text {
			if unicode.Is(entry.script, r) {
				return Language{Tag: entry.tag, Name: entry.name}
			}
		}
	}
	return DefaultLanguage
}

var (
	parentheticalLatin = regexp.MustCompile(`\([^)]*[a-zA-Z][^)]*\)`)
	bareLatinWord      = regexp.MustCompile(`\b[a-zA-Z]+\b`)
	multiSpace         = regexp.MustCompile(`\s+`)
)

// CleanForSpeech strips embedded English glosses before synthesis.
// Indic and Arabic-script replies often carry parenthetical Latin
// translations that trip up the voice; those are removed. Odia
// additionally drops bare Latin words since no installed voice will
// pronounce them sensibly.
func CleanForSpeech(text string, lang Language) string {
	if lang.Tag == DefaultLanguage.Tag {
		return text
	}

	cleaned := parentheticalLatin.ReplaceAllString(text, "")
	if lang.IsOdia() {
		cleaned = bareLatinWord.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(multiSpace.ReplaceAllString(cleaned, " "))
	}
	return cleaned
}
