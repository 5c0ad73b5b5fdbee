// Package voice wraps platform speech engines and keeps speech input and
// speech output from ever running at the same time.
package voice

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when the host has no engine for a voice feature.
var ErrUnsupported = errors.New("voice: capability unavailable")

// Recognizer is a platform speech recognition capability. Callbacks may
// arrive on any goroutine, including synchronously from Stop or Abort. A
// result is never delivered synchronously from Start.
type Recognizer interface {
	// Start begins one recognition session. The session ends with exactly
	// one OnEnd, preceded by at most one OnResult or OnError.
	Start(opts RecognitionOptions, events RecognitionEvents) error
	// Stop asks the engine to finish and deliver what it heard.
	Stop()
	// Abort ends the session without a result.
	Abort()
}

// RecognitionOptions configures one recognition session.
type RecognitionOptions struct {
	Lang           string // BCP-47 tag, e.g. "it-IT"
	Continuous     bool
	InterimResults bool
}

// RecognitionEvents are the terminal events of a recognition session.
type RecognitionEvents struct {
	OnResult func(transcript string)
	OnError  func(err error)
	OnEnd    func()
}

// Synthesizer is a platform speech synthesis capability.
type Synthesizer interface {
	// Speak starts playing u. Exactly one of OnEnd or OnError follows.
	Speak(u Utterance, events UtteranceEvents) error
	Pause()
	Resume()
	// Cancel stops playback. The engine may still report OnEnd/OnError for
	// the cancelled utterance.
	Cancel()
}

// Utterance is one unit of synthesized speech.
type Utterance struct {
	Text   string
	Lang   string  // BCP-47 tag
	Rate   float64 // 1.0 is the engine's normal speed
	Pitch  float64 // 1.0 is the engine's normal pitch
	Volume float64 // 0..1
}

// UtteranceEvents are the lifecycle events of an utterance.
type UtteranceEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// Profile is the delivery used for every utterance.
type Profile struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// CalmProfile is a deliberately unhurried delivery: slower than normal with a
// slightly lowered pitch.
var CalmProfile = Profile{Rate: 0.85, Pitch: 0.95, Volume: 1.0}

// RecognitionReason classifies why recognition failed.
type RecognitionReason string

const (
	NoSpeech   RecognitionReason = "no-speech"
	NotAllowed RecognitionReason = "not-allowed"
	Aborted    RecognitionReason = "aborted"
	Network    RecognitionReason = "network"
	Other      RecognitionReason = "other"
)

// RecognitionError is reported when a recognition session fails. It only
// ever ends the listening state; it never becomes a chat message.
type RecognitionError struct {
	Reason RecognitionReason
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech recognition %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("speech recognition %s", e.Reason)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// asRecognitionError wraps engine errors that are not already classified.
func asRecognitionError(err error) *RecognitionError {
	var rerr *RecognitionError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &RecognitionError{Reason: Other, Err: err}
}
