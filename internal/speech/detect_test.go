package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
	}{
		{"hindi", "नमस्ते, आप कैसे हैं?", "hi-IN"},
		{"odia", "ନମସ୍କାର", "or-IN"},
		{"bengali", "নমস্কার", "bn-IN"},
		{"tamil", "வணக்கம்", "ta-IN"},
		{"telugu", "నమస్కారం", "te-IN"},
		{"kannada", "ನಮಸ್ಕಾರ", "kn-IN"},
		{"malayalam", "നമസ്കാരം", "ml-IN"},
		{"gujarati", "નમસ્તે", "gu-IN"},
		{"punjabi", "ਸਤ ਸ੍ਰੀ ਅਕਾਲ", "pa-IN"},
		{"urdu", "السلام علیکم", "ur-IN"},
		{"english default", "hello farmer", "en-IN"},
		{"empty", "", "en-IN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.tag, DetectLanguage(tc.text).Tag)
		})
	}
}

func TestDetectLanguageMixedScriptFirstMatchWins(t *testing.T) {
	// Hindi with embedded English resolves to Hindi, not English.
	lang := DetectLanguage("मिट्टी (soil) की जांच करें")
	assert.Equal(t, "hi-IN", lang.Tag)
	assert.Equal(t, "Hindi", lang.Name)
}

func TestCleanForSpeechStripsParentheticalLatin(t *testing.T) {
	lang := Language{Tag: "hi-IN", Name: "Hindi"}
	cleaned := CleanForSpeech("मिट्टी (soil) अच्छी है", lang)
	assert.NotContains(t, cleaned, "soil")
	assert.Contains(t, cleaned, "मिट्टी")
}

func TestCleanForSpeechOdiaStripsBareLatinWords(t *testing.T) {
	lang := Language{Tag: "or-IN", Name: "Odia"}
	cleaned := CleanForSpeech("ମାଟି soil ଭଲ (good) ଅଛି", lang)
	assert.NotContains(t, cleaned, "soil")
	assert.NotContains(t, cleaned, "good")
	assert.Contains(t, cleaned, "ମାଟି")
	assert.NotContains(t, cleaned, "  ", "multiple spaces collapsed")
}

func TestCleanForSpeechEnglishUntouched(t *testing.T) {
	text := "Use drip irrigation (saves water)."
	assert.Equal(t, text, CleanForSpeech(text, DefaultLanguage))
}
