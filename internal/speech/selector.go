package speech

import "strings"

// Voice describes one installed synthesis voice.
type Voice struct {
	Name string
	Lang string // BCP-47 tag reported by the platform
}

// Selection is the resolved voice, language, and prepared text for one
// utterance. Voice may be nil when the platform has no usable match,
// in which case the synthesizer's default applies.
type Selection struct {
	Voice       *Voice
	Lang        string // tag actually requested, may differ after fallback
	Language    string // human-readable, annotated on substitution
	Text        string // cleaned text to speak
	Substituted bool   // a different language's voice was chosen
}

// Select resolves the best-effort voice for reply text against the
// installed voice catalog. Resolution order, first match wins: exact
// tag, language subtag, subtag with vendor/region naming, any
// Indian-region voice, then English fallbacks. Odia gets its own
// ladder since dedicated Odia voices are rare: Odia-named voices,
// then Hindi (announced), then Bengali (announced).
func Select(text string, voices []Voice) Selection {
	lang := DetectLanguage(text)

	sel := Selection{
		Lang:     lang.Tag,
		Language: lang.Name,
		Text:     CleanForSpeech(text, lang),
	}

	if lang.IsOdia() {
		resolveOdia(&sel, voices)
	} else {
		resolveStandard(&sel, lang.Tag, voices)
	}

	if sel.Voice == nil {
		sel.Voice = firstMatch(voices,
			func(v Voice) bool { return v.Lang == "en-IN" },
			func(v Voice) bool { return v.Lang == "en-US" },
			func(v Voice) bool { return strings.HasPrefix(v.Lang, "en") },
		)
	}

	return sel
}

func resolveOdia(sel *Selection, voices []Voice) {
	sel.Voice = firstMatch(voices, func(v Voice) bool {
		return v.Lang == "or-IN" || v.Lang == "or" || strings.HasPrefix(v.Lang, "or-")
	})
	if sel.Voice == nil {
		sel.Voice = firstMatch(voices, func(v Voice) bool {
			name := strings.ToLower(v.Name)
			return strings.Contains(name, "oriya") || strings.Contains(name, "odia")
		})
	}
	if sel.Voice == nil {
		sel.Voice = firstMatch(voices, func(v Voice) bool {
			return v.Lang == "hi-IN" || strings.HasPrefix(v.Lang, "hi")
		})
		if sel.Voice != nil {
			sel.Lang = "hi-IN"
			sel.Language = "Odia (using Hindi voice)"
			sel.Substituted = true
			return
		}
	}
	if sel.Voice == nil {
		sel.Voice = firstMatch(voices, func(v Voice) bool {
			return v.Lang == "bn-IN" || strings.HasPrefix(v.Lang, "bn")
		})
		if sel.Voice != nil {
			sel.Lang = "bn-IN"
			sel.Language = "Odia (using Bengali voice)"
			sel.Substituted = true
		}
	}
}

func resolveStandard(sel *Selection, tag string, voices []Voice) {
	subtag := strings.SplitN(tag, "-", 2)[0]

	sel.Voice = firstMatch(voices, func(v Voice) bool { return v.Lang == tag })
	if sel.Voice == nil {
		sel.Voice = firstMatch(voices, func(v Voice) bool { return strings.HasPrefix(v.Lang, subtag) })
	}
	if sel.Voice == nil {
		sel.Voice = firstMatch(voices, func(v Voice) bool {
			return strings.HasPrefix(v.Lang, subtag) &&
				(strings.Contains(v.Name, "Google") || strings.Contains(v.Name, "Indian"))
		})
	}
	if sel.Voice == nil && tag != "en-IN" {
		sel.Voice = firstMatch(voices, func(v Voice) bool {
			return strings.Contains(v.Lang, "IN") || strings.Contains(v.Name, "India")
		})
	}
}

func firstMatch(voices []Voice, predicates ...func(Voice) bool) *Voice {
	for _, match := range predicates {
		for i := range voices {
			if match(voices[i]) {
				return &voices[i]
			}
		}
	}
	return nil
}
