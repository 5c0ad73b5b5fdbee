package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Color codes
const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
)

// Spinner animates a status message on one line
type Spinner struct {
	out   io.Writer
	color bool

	mu     sync.Mutex
	active bool
	done   chan struct{}
	exited chan struct{}
}

// NewSpinner creates a spinner writing to out
func NewSpinner(out io.Writer, color bool) *Spinner {
	return &Spinner{out: out, color: color}
}

// Start displays the spinner with a message, replacing any running one
func (s *Spinner) Start(msg string) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.done = make(chan struct{})
	s.exited = make(chan struct{})

	go s.spin(msg, s.done, s.exited)
}

func (s *Spinner) spin(msg string, done, exited chan struct{}) {
	defer close(exited)

	reset, cyan := "", ""
	if s.color {
		reset, cyan = colorReset, colorCyan
	}
	spinnerChars := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(spinnerChars) {
		fmt.Fprintf(s.out, "\r%s%s %s%s", cyan, spinnerChars[i], msg, reset)
		select {
		case <-done:
			// Clear the spinner line
			fmt.Fprint(s.out, "\r\033[2K\r")
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the spinner and waits until its line is cleared
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	done, exited := s.done, s.exited
	s.mu.Unlock()

	close(done)
	<-exited
}

// Active reports whether the spinner is running
func (s *Spinner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
