// Package history keeps the in-memory message log of one conversation.
package history

import (
	"sync"
	"time"
)

// Log is an append-only, insertion ordered message list. IDs come from a
// counter that survives Reset, so an ID is never handed out twice by the same
// Log.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	lastID   int64
	now      func() time.Time
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append assigns the next ID and a timestamp (unless already set) and stores
// the message. The stored copy is returned.
func (l *Log) Append(msg Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastID++
	msg.ID = l.lastID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = l.now()
	}
	if msg.Kind == "" {
		msg.Kind = KindChat
	}
	if len(msg.Blocks) > 0 {
		msg.Blocks = append(msg.Blocks[:0:0], msg.Blocks...)
	}

	l.messages = append(l.messages, msg)
	return msg
}

// Messages returns a copy of every message in insertion order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Message(nil), l.messages...)
}

// Recent returns the last N messages.
func (l *Log) Recent(limit int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || len(l.messages) == 0 {
		return []Message{}
	}
	start := 0
	if len(l.messages) > limit {
		start = len(l.messages) - limit
	}
	return append([]Message(nil), l.messages[start:]...)
}

// Len returns the number of stored messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Reset discards all messages. The ID counter keeps counting.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}
