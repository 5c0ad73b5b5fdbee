package voice

import "sherpa/internal/locale"

// State is a snapshot of both sides of the audio floor.
type State struct {
	Listening bool `json:"listening"`
	Speaking  bool `json:"speaking"`
	Paused    bool `json:"paused"`
}

// Voice pairs a Listener and a Speaker over one shared Floor.
type Voice struct {
	floor    *Floor
	Listener *Listener
	Speaker  *Speaker
}

// New builds the voice pair. Either engine may be nil when the host lacks
// that capability.
func New(rec Recognizer, synth Synthesizer, profile Profile) *Voice {
	floor := &Floor{}
	return &Voice{
		floor:    floor,
		Listener: NewListener(rec, floor),
		Speaker:  NewSpeaker(synth, floor, profile),
	}
}

// State returns a consistent snapshot of the listening and speaking flags.
func (v *Voice) State() State {
	var st State
	v.floor.Hold(func() {
		st.Listening = v.Listener.Listening()
		st.Speaking = v.Speaker.Speaking()
		st.Paused = v.Speaker.Paused()
	})
	return st
}

// Listen starts a listening session in lang.
func (v *Voice) Listen(lang locale.Language) error {
	return v.Listener.Start(lang)
}

// Speak reads text aloud in lang.
func (v *Voice) Speak(text string, lang locale.Language) {
	v.Speaker.Speak(text, lang)
}

// Shutdown silences both sides.
func (v *Voice) Shutdown() {
	v.Listener.Abort()
	v.Speaker.Cancel()
}
