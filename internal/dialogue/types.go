package dialogue

import (
	"fmt"

	"sherpa/internal/locale"
)

// ChatRequest is the body of POST /api/chat/.
type ChatRequest struct {
	Message  string `json:"message"`
	UserName string `json:"user_name"`
}

// chatResponse uses a pointer so a missing reply can be told apart from an
// empty one.
type chatResponse struct {
	Reply *string `json:"reply"`
	Lang  string  `json:"lang,omitempty"`
}

// Reply is a successful dialogue answer. Lang is empty unless the service
// reported one of the supported languages.
type Reply struct {
	Text string
	Lang locale.Language
}

// ContactForm is the body of POST /api/contact/.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type contactResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TransportError is returned for every failed exchange with the dialogue
// service: network errors, timeouts, non-2xx statuses and unusable bodies.
type TransportError struct {
	Op         string // "chat", "contact", "health"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dialogue %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dialogue %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
