package voice

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"sherpa/internal/locale"
	"sherpa/internal/metrics"
)

// Speaker reads text aloud through a Synthesizer. At most one utterance is
// audible at a time: a new Speak always preempts the previous one.
type Speaker struct {
	synth   Synthesizer
	floor   *Floor
	profile Profile

	mu       sync.Mutex
	enabled  bool
	speaking bool
	paused   bool
	seq      uint64 // identifies the current utterance
	lease    uint64 // floor lease of the current utterance
}

// NewSpeaker creates a speaker. A nil synth yields a speaker that is never
// Available and silently ignores Speak.
func NewSpeaker(synth Synthesizer, floor *Floor, profile Profile) *Speaker {
	return &Speaker{
		synth:   synth,
		floor:   floor,
		profile: profile,
		enabled: true,
	}
}

// Available reports whether the host can synthesize speech.
func (s *Speaker) Available() bool {
	return s.synth != nil
}

// Enabled reports the user's voice output setting.
func (s *Speaker) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled toggles voice output. Turning it off stops any speech at once.
func (s *Speaker) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	if !enabled {
		s.Cancel()
	}
}

// Speaking reports whether an utterance is playing or paused.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Paused reports whether the current utterance is paused.
func (s *Speaker) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Speak cancels whatever is playing and starts reading text in lang. It is a
// no-op when voice output is disabled or unavailable.
func (s *Speaker) Speak(text string, lang locale.Language) {
	if s.synth == nil || strings.TrimSpace(text) == "" || !s.Enabled() {
		return
	}

	err := s.floor.Take(Output, s.preempt, func(lease uint64) error {
		s.mu.Lock()
		if !s.enabled {
			s.mu.Unlock()
			s.floor.Leave(Output, lease)
			return nil
		}
		wasSpeaking := s.speaking
		s.seq++
		seq := s.seq
		s.lease = lease
		s.speaking, s.paused = true, false
		s.mu.Unlock()

		if wasSpeaking {
			metrics.Utterances.WithLabelValues("cancelled").Inc()
			s.synth.Cancel()
		}

		u := Utterance{
			Text:   text,
			Lang:   lang.Tag(),
			Rate:   s.profile.Rate,
			Pitch:  s.profile.Pitch,
			Volume: s.profile.Volume,
		}
		if err := s.synth.Speak(u, s.events(seq)); err != nil {
			s.mu.Lock()
			if s.seq == seq {
				s.speaking, s.paused = false, false
			}
			s.mu.Unlock()
			return err
		}
		return nil
	})
	if err != nil {
		metrics.Utterances.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("lang", lang.Tag()).Msg("Speech synthesis failed to start")
	}
}

// Pause pauses the current utterance. It does nothing when idle or paused.
func (s *Speaker) Pause() {
	s.mu.Lock()
	if !s.speaking || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.mu.Unlock()

	s.synth.Pause()
}

// Resume continues a paused utterance.
func (s *Speaker) Resume() {
	s.mu.Lock()
	if !s.speaking || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.mu.Unlock()

	s.synth.Resume()
}

// Cancel stops playback unconditionally and clears the paused state.
func (s *Speaker) Cancel() {
	if s.synth == nil {
		return
	}
	s.floor.Leave(Output, s.stop())
}

// preempt is the floor release callback: the listener is taking over.
func (s *Speaker) preempt() {
	s.stop()
}

// stop silences the synthesizer and returns the lease of the utterance it
// ended.
func (s *Speaker) stop() uint64 {
	s.mu.Lock()
	wasSpeaking := s.speaking
	lease := s.lease
	s.seq++
	s.speaking, s.paused = false, false
	s.mu.Unlock()

	if wasSpeaking {
		metrics.Utterances.WithLabelValues("cancelled").Inc()
	}
	s.synth.Cancel()
	return lease
}

func (s *Speaker) events(seq uint64) UtteranceEvents {
	return UtteranceEvents{
		OnStart: func() {
			log.Debug().Uint64("utterance", seq).Msg("Speech started")
		},
		OnEnd: func() {
			if s.finish(seq) {
				metrics.Utterances.WithLabelValues("ended").Inc()
				log.Debug().Uint64("utterance", seq).Msg("Speech finished")
			}
		},
		OnError: func(err error) {
			if s.finish(seq) {
				metrics.Utterances.WithLabelValues("error").Inc()
				log.Warn().Err(err).Uint64("utterance", seq).Msg("Speech synthesis error")
			}
		},
	}
}

// finish ends utterance seq if it is still current.
func (s *Speaker) finish(seq uint64) bool {
	s.mu.Lock()
	if seq != s.seq || !s.speaking {
		s.mu.Unlock()
		return false
	}
	s.speaking, s.paused = false, false
	lease := s.lease
	s.mu.Unlock()

	s.floor.Leave(Output, lease)
	return true
}
