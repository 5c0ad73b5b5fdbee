package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"sherpa/internal/locale"
)

// FileStore keeps the keys as a flat JSON object in one file, the terminal
// equivalent of a browser profile's local storage.
type FileStore struct {
	filePath string
	mu       sync.Mutex
}

// NewFileStore creates a store backed by filePath. The file and its directory
// are created on first write.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Load reads the stored keys. A missing file is an empty session; a corrupted
// one is moved aside to <path>.backup and treated as empty.
func (s *FileStore) Load(ctx context.Context) (Saved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readUnlocked()
	if err != nil {
		return Saved{}, err
	}
	return savedFromValues(values[KeyUserName], values[KeyLanguage]), nil
}

func (s *FileStore) SaveName(ctx context.Context, name string) error {
	return s.update(func(values map[string]string) {
		values[KeyUserName] = name
	})
}

func (s *FileStore) SavePreferredLanguage(ctx context.Context, lang locale.Language) error {
	return s.update(func(values map[string]string) {
		values[KeyLanguage] = string(lang)
	})
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.update(func(values map[string]string) {
		delete(values, KeyUserName)
	})
}

func (s *FileStore) update(mutate func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readUnlocked()
	if err != nil {
		return err
	}
	mutate(values)
	return s.writeUnlocked(values)
}

// readUnlocked must be called with the lock held.
func (s *FileStore) readUnlocked() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if err := json.Unmarshal(data, &values); err != nil {
		backupPath := s.filePath + ".backup"
		log.Warn().Err(err).Str("path", s.filePath).Str("backup", backupPath).Msg("Session file corrupted, starting fresh")
		if err := os.Rename(s.filePath, backupPath); err != nil {
			return nil, fmt.Errorf("failed to back up corrupted session file: %w", err)
		}
		return make(map[string]string), nil
	}
	return values, nil
}

// writeUnlocked must be called with the lock held.
func (s *FileStore) writeUnlocked(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
