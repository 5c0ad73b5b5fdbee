// Package session holds the conversation identity and its persistence.
package session

import (
	"context"

	"sherpa/internal/locale"
)

// Persisted keys, shared by every backend.
const (
	KeyUserName = "chat_user_name"
	KeyLanguage = "user_preferred_lang"
)

// Session is the live identity of the conversation. An empty UserName means
// the name has not been captured yet.
type Session struct {
	UserName string
	Language locale.Language
}

// Onboarded reports whether the display name is known.
func (s Session) Onboarded() bool {
	return s.UserName != ""
}

// Saved is what a Store remembers. Zero fields mean "not stored".
type Saved struct {
	UserName string
	Language locale.Language
}

// Empty reports whether nothing was stored.
func (s Saved) Empty() bool {
	return s.UserName == "" && s.Language == ""
}

// Store persists identity and language preference. Implementations must treat
// missing keys as "no prior session" rather than an error.
type Store interface {
	Load(ctx context.Context) (Saved, error)
	SaveName(ctx context.Context, name string) error
	SavePreferredLanguage(ctx context.Context, lang locale.Language) error
	// Clear forgets the identity. The language preference is kept.
	Clear(ctx context.Context) error
}

// savedFromValues builds a Saved from raw key/value pairs, ignoring languages
// outside the supported set.
func savedFromValues(name, lang string) Saved {
	saved := Saved{UserName: name}
	if l, ok := locale.Parse(lang); ok {
		saved.Language = l
	}
	return saved
}
