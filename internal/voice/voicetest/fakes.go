// Package voicetest provides scriptable speech engines for tests.
package voicetest

import (
	"errors"
	"sync"

	"sherpa/internal/voice"
)

// Recognizer is a fake voice.Recognizer. Sessions stay open until the test
// drives them with Hear, Fail or End.
type Recognizer struct {
	mu      sync.Mutex
	events  voice.RecognitionEvents
	active  bool
	Opts    []voice.RecognitionOptions
	Aborts  int
	Stops   int
	StartFn func() error // optional start failure
}

func (r *Recognizer) Start(opts voice.RecognitionOptions, events voice.RecognitionEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartFn != nil {
		if err := r.StartFn(); err != nil {
			return err
		}
	}
	r.Opts = append(r.Opts, opts)
	r.events, r.active = events, true
	return nil
}

// Stop ends the session the way an engine confirms end of speech.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	r.Stops++
	r.mu.Unlock()
	r.End()
}

func (r *Recognizer) Abort() {
	r.mu.Lock()
	r.Aborts++
	r.mu.Unlock()
	r.End()
}

// Hear delivers a final transcript followed by the end of the session.
func (r *Recognizer) Hear(transcript string) {
	ev, ok := r.current()
	if !ok {
		return
	}
	ev.OnResult(transcript)
	r.End()
}

// Fail reports a recognition error followed by the end of the session.
func (r *Recognizer) Fail(err error) {
	ev, ok := r.current()
	if !ok {
		return
	}
	ev.OnError(err)
	r.End()
}

// End closes the session.
func (r *Recognizer) End() {
	r.mu.Lock()
	ev, ok := r.events, r.active
	r.active = false
	r.mu.Unlock()
	if ok && ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// Events returns the callbacks of the most recent session, open or not.
func (r *Recognizer) Events() voice.RecognitionEvents {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events
}

func (r *Recognizer) current() (voice.RecognitionEvents, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events, r.active
}

// Synthesizer is a fake voice.Synthesizer that records what it was asked to
// say. Utterances play until the test calls Finish or Fail.
type Synthesizer struct {
	mu       sync.Mutex
	Spoken   []voice.Utterance
	events   voice.UtteranceEvents
	playing  bool
	Pauses   int
	Resumes  int
	Cancels  int
	SpeakErr error
}

func (s *Synthesizer) Speak(u voice.Utterance, events voice.UtteranceEvents) error {
	s.mu.Lock()
	if s.SpeakErr != nil {
		err := s.SpeakErr
		s.mu.Unlock()
		return err
	}
	s.Spoken = append(s.Spoken, u)
	s.events, s.playing = events, true
	s.mu.Unlock()

	if events.OnStart != nil {
		events.OnStart()
	}
	return nil
}

func (s *Synthesizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pauses++
}

func (s *Synthesizer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Resumes++
}

// Cancel stops playback and, like browser engines, reports the cancelled
// utterance as failed.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	s.Cancels++
	ev, ok := s.events, s.playing
	s.playing = false
	s.mu.Unlock()
	if ok && ev.OnError != nil {
		ev.OnError(errCanceled)
	}
}

// Finish ends the current utterance naturally.
func (s *Synthesizer) Finish() {
	s.mu.Lock()
	ev, ok := s.events, s.playing
	s.playing = false
	s.mu.Unlock()
	if ok && ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// Texts returns the text of every utterance in order.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	for i, u := range s.Spoken {
		out[i] = u.Text
	}
	return out
}

// Last returns the most recent utterance.
func (s *Synthesizer) Last() (voice.Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Spoken) == 0 {
		return voice.Utterance{}, false
	}
	return s.Spoken[len(s.Spoken)-1], true
}

var errCanceled = errors.New("utterance interrupted")
