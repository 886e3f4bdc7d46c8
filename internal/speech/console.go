package speech

import (
	"fmt"
	"io"
)

// ConsoleSynthesizer renders narration as terminal output. It stands
// in for platform text-to-speech where no audio device is available.
type ConsoleSynthesizer struct {
	Out     io.Writer
	Catalog []Voice
}

// DefaultCatalog mirrors a typical on-device voice list for Indian
// locales. Odia is deliberately absent; most platforms ship none.
var DefaultCatalog = []Voice{
	{Name: "Google हिन्दी", Lang: "hi-IN"},
	{Name: "Google বাংলা", Lang: "bn-IN"},
	{Name: "Google தமிழ்", Lang: "ta-IN"},
	{Name: "Google తెలుగు", Lang: "te-IN"},
	{Name: "English India", Lang: "en-IN"},
	{Name: "English United States", Lang: "en-US"},
}

// Voices implements Synthesizer.
func (s *ConsoleSynthesizer) Voices() []Voice {
	if len(s.Catalog) > 0 {
		return s.Catalog
	}
	return DefaultCatalog
}

// Speak implements Synthesizer: the utterance is printed rather than
// voiced, with the full start/end lifecycle observed.
func (s *ConsoleSynthesizer) Speak(u Utterance, cb Callbacks) error {
	if cb.OnStart != nil {
		cb.OnStart()
	}

	voiceName := "default"
	if u.Voice != nil {
		voiceName = u.Voice.Name
	}
	if _, err := fmt.Fprintf(s.Out, "🔊 [%s / %s] %s\n", u.Lang, voiceName, u.Text); err != nil {
		if cb.OnError != nil {
			cb.OnError(ErrorSynthesisFailed)
		}
		return err
	}

	if cb.OnEnd != nil {
		cb.OnEnd()
	}
	return nil
}

// Cancel implements Synthesizer; console output cannot be interrupted.
func (s *ConsoleSynthesizer) Cancel() {}
