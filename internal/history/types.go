package history

import (
	"time"

	"sherpa/internal/reply"
)

// Sender identifies who authored a message.
type Sender string

const (
	User Sender = "user"
	Bot  Sender = "bot"
)

// Kind tells presenters why a bot message exists.
type Kind string

const (
	KindChat     Kind = "chat"     // typed or spoken text and dialogue replies
	KindPrompt   Kind = "prompt"   // "what is your name" / "welcome back"
	KindGreeting Kind = "greeting" // onboarding reply synthesized locally
	KindNotice   Kind = "notice"   // "tell me your name first"
	KindError    Kind = "error"    // localized transport failure
)

// Message represents a single message in a conversation. Messages are
// immutable once appended.
type Message struct {
	ID        int64         `json:"id"`
	Text      string        `json:"text"`
	Sender    Sender        `json:"sender"`
	Kind      Kind          `json:"kind"`
	Blocks    []reply.Block `json:"blocks,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
