// Package chat drives one conversation: onboarding, request serialization,
// reply formatting and voice coordination.
package chat

import (
	"context"
	"errors"

	"sherpa/internal/dialogue"
	"sherpa/internal/history"
	"sherpa/internal/session"
	"sherpa/internal/voice"
)

// ErrEmptyMessage is returned when a blank message is submitted. Nothing is
// appended and no request is made.
var ErrEmptyMessage = errors.New("chat: empty message")

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("chat: controller closed")

// Phase is the onboarding axis.
type Phase string

const (
	AwaitingName Phase = "awaiting_name"
	Ready        Phase = "ready"
)

// RequestState is the request axis.
type RequestState string

const (
	Idle    RequestState = "idle"
	Pending RequestState = "pending"
)

// Transport sends one message to the dialogue service.
type Transport interface {
	Send(ctx context.Context, message, userName string) (*dialogue.Reply, error)
}

// Observer is told about every appended message and state change. Calls are
// made in order from a single goroutine, never while the controller is
// locked, so an observer may call back into the controller.
type Observer interface {
	MessageAppended(msg history.Message)
	StateChanged(snap Snapshot)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnMessage func(history.Message)
	OnState   func(Snapshot)
}

func (o ObserverFuncs) MessageAppended(msg history.Message) {
	if o.OnMessage != nil {
		o.OnMessage(msg)
	}
}

func (o ObserverFuncs) StateChanged(snap Snapshot) {
	if o.OnState != nil {
		o.OnState(snap)
	}
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	ConversationID string            `json:"conversation_id"`
	Phase          Phase             `json:"phase"`
	Request        RequestState      `json:"request"`
	Thinking       bool              `json:"thinking"`
	Session        session.Session   `json:"session"`
	Voice          voice.State       `json:"voice"`
	VoiceEnabled   bool              `json:"voice_enabled"`
	CanListen      bool              `json:"can_listen"`
	CanSpeak       bool              `json:"can_speak"`
	Queued         int               `json:"queued"`
	Messages       []history.Message `json:"messages"`
}
