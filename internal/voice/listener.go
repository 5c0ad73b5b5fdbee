package voice

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"sherpa/internal/locale"
	"sherpa/internal/metrics"
)

// Listener captures one spoken transcript per listening session through a
// Recognizer and hands it to the registered handler.
type Listener struct {
	rec   Recognizer
	floor *Floor

	mu        sync.Mutex
	listening bool
	delivered bool
	seq       uint64 // identifies the current session
	lease     uint64 // floor lease of the current session
	handler   func(transcript string)
}

// NewListener creates a listener. A nil rec yields a listener that is never
// Available; Start then fails with ErrUnsupported.
func NewListener(rec Recognizer, floor *Floor) *Listener {
	return &Listener{rec: rec, floor: floor}
}

// Available reports whether the host can recognize speech.
func (l *Listener) Available() bool {
	return l.rec != nil
}

// OnTranscript registers the handler receiving final transcripts.
func (l *Listener) OnTranscript(fn func(transcript string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

// Listening reports whether a session is active.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// Start begins a single-shot session in lang, cancelling any speech output
// first. It does nothing if a session is already active.
func (l *Listener) Start(lang locale.Language) error {
	if l.rec == nil {
		return ErrUnsupported
	}
	if l.Listening() {
		return nil
	}

	err := l.floor.Take(Input, l.preempt, func(lease uint64) error {
		l.mu.Lock()
		l.lease = lease
		if l.listening {
			l.mu.Unlock()
			return nil
		}
		l.seq++
		seq := l.seq
		l.listening, l.delivered = true, false
		l.mu.Unlock()

		opts := RecognitionOptions{Lang: lang.Tag()}
		if err := l.rec.Start(opts, l.events(seq)); err != nil {
			l.mu.Lock()
			if l.seq == seq {
				l.listening = false
			}
			l.mu.Unlock()
			return asRecognitionError(err)
		}
		return nil
	})
	if err != nil {
		metrics.ListeningSessions.WithLabelValues("error").Inc()
		log.Debug().Err(err).Msg("Speech recognition failed to start")
		return err
	}
	return nil
}

// Stop asks the recognizer to finish. Listening ends when the recognizer
// confirms the end of speech.
func (l *Listener) Stop() {
	if !l.Listening() {
		return
	}
	l.rec.Stop()
}

// Abort ends the session immediately without a transcript.
func (l *Listener) Abort() {
	if lease, ok := l.abort(); ok {
		l.floor.Leave(Input, lease)
	}
}

// preempt is the floor release callback: the speaker is taking over.
func (l *Listener) preempt() {
	l.abort()
}

// abort ends the active session and returns its floor lease.
func (l *Listener) abort() (uint64, bool) {
	l.mu.Lock()
	if !l.listening {
		l.mu.Unlock()
		return 0, false
	}
	l.seq++
	l.listening = false
	lease := l.lease
	l.mu.Unlock()

	metrics.ListeningSessions.WithLabelValues("aborted").Inc()
	l.rec.Abort()
	return lease, true
}

func (l *Listener) events(seq uint64) RecognitionEvents {
	return RecognitionEvents{
		OnResult: func(transcript string) {
			l.mu.Lock()
			if seq != l.seq || !l.listening || l.delivered {
				l.mu.Unlock()
				return
			}
			l.delivered = true
			handler := l.handler
			l.mu.Unlock()

			metrics.ListeningSessions.WithLabelValues("transcript").Inc()
			if handler != nil {
				handler(transcript)
			}
		},
		OnError: func(err error) {
			if !l.end(seq) {
				return
			}
			rerr := asRecognitionError(err)
			metrics.ListeningSessions.WithLabelValues("error").Inc()
			if errors.Is(err, ErrUnsupported) || rerr.Reason == NotAllowed {
				log.Warn().Err(rerr).Msg("Speech recognition unavailable")
				return
			}
			log.Debug().Err(rerr).Msg("Speech recognition ended with error")
		},
		OnEnd: func() {
			l.mu.Lock()
			delivered := l.delivered
			l.mu.Unlock()
			if l.end(seq) && !delivered {
				metrics.ListeningSessions.WithLabelValues("empty").Inc()
			}
		},
	}
}

// end closes session seq if it is still current.
func (l *Listener) end(seq uint64) bool {
	l.mu.Lock()
	if seq != l.seq || !l.listening {
		l.mu.Unlock()
		return false
	}
	l.listening = false
	lease := l.lease
	l.mu.Unlock()

	l.floor.Leave(Input, lease)
	return true
}
