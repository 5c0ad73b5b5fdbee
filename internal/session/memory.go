package session

import (
	"context"
	"sync"

	"sherpa/internal/locale"
)

// MemoryStore keeps the keys in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Load(ctx context.Context) (Saved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return savedFromValues(s.values[KeyUserName], s.values[KeyLanguage]), nil
}

func (s *MemoryStore) SaveName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyUserName] = name
	return nil
}

func (s *MemoryStore) SavePreferredLanguage(ctx context.Context, lang locale.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyLanguage] = string(lang)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, KeyUserName)
	return nil
}
