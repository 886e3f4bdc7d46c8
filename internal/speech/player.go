package speech

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrorCode classifies synthesis failures reported by the platform.
type ErrorCode string

const (
	ErrorNotAllowed          ErrorCode = "not-allowed"
	ErrorLanguageUnavailable ErrorCode = "language-unavailable"
	ErrorSynthesisFailed     ErrorCode = "synthesis-failed"
)

// Utterance is one synthesis request.
type Utterance struct {
	Text   string
	Lang   string
	Voice  *Voice // nil means platform default
	Rate   float64
	Pitch  float64
	Volume float64
}

// Callbacks receive playback lifecycle events from the synthesizer.
type Callbacks struct {
	OnStart func()
	OnEnd   func()
	OnError func(code ErrorCode)
}

// Synthesizer is the injected on-device speech capability. Speak is
// non-blocking; events arrive through the callbacks. Cancel stops any
// in-flight utterance.
type Synthesizer interface {
	Voices() []Voice
	Speak(u Utterance, cb Callbacks) error
	Cancel()
}

// Player narrates bot replies. At most one utterance plays at a time:
// starting playback cancels any in-flight playback, and toggling the
// playing message's control cancels it.
type Player struct {
	synth  Synthesizer
	notify func(string) // user-facing alert channel
	logger *zap.Logger

	mu        sync.Mutex
	playingID string
}

// NewPlayer wires a synthesizer and an alert sink into a player.
func NewPlayer(synth Synthesizer, notify func(string), logger *zap.Logger) *Player {
	if notify == nil {
		notify = func(string) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{synth: synth, notify: notify, logger: logger}
}

// PlayingID returns the id of the message currently being narrated,
// or empty when idle.
func (p *Player) PlayingID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playingID
}

// Toggle starts narrating the given message, or stops it when it is
// already the one playing.
func (p *Player) Toggle(messageID, text string) {
	if text == "" {
		return
	}

	p.mu.Lock()
	if p.playingID == messageID {
		p.mu.Unlock()
		p.synth.Cancel()
		p.setPlaying("")
		return
	}
	p.mu.Unlock()

	// Stop any currently playing speech before starting a new one.
	p.synth.Cancel()

	sel := Select(text, p.synth.Voices())
	p.logger.Info("text-to-speech",
		zap.String("messageId", messageID),
		zap.String("detectedLanguage", sel.Language),
		zap.String("requestedLang", sel.Lang),
		zap.Bool("substituted", sel.Substituted),
	)

	u := Utterance{
		Text:   sel.Text,
		Lang:   sel.Lang,
		Voice:  sel.Voice,
		Rate:   0.8, // slower for clearer pronunciation
		Pitch:  1.0,
		Volume: 1.0,
	}

	cb := Callbacks{
		OnStart: func() { p.setPlaying(messageID) },
		OnEnd:   func() { p.setPlaying("") },
		OnError: func(code ErrorCode) {
			p.setPlaying("")
			p.alert(code, sel)
		},
	}

	if err := p.synth.Speak(u, cb); err != nil {
		p.logger.Error("speech synthesis failed to start", zap.Error(err))
	}
}

// Stop cancels playback and clears the playing pointer.
func (p *Player) Stop() {
	p.synth.Cancel()
	p.setPlaying("")
}

func (p *Player) setPlaying(id string) {
	p.mu.Lock()
	p.playingID = id
	p.mu.Unlock()
}

func (p *Player) alert(code ErrorCode, sel Selection) {
	switch code {
	case ErrorNotAllowed:
		p.notify("Please allow audio playback permissions.")
	case ErrorLanguageUnavailable:
		if sel.Substituted {
			p.notify("Odia voice is not available. Using Hindi voice as fallback for better pronunciation.")
		} else {
			p.notify(fmt.Sprintf("Voice for %s is not available. Using default voice.", sel.Language))
		}
	default:
		p.logger.Error("speech synthesis error", zap.String("code", string(code)))
	}
}
