// Package persist is a small typed key-value store backed by one JSON file
// per key. Reads that fail for any reason fall back to a caller-supplied
// default, and writes are atomic, so a half-written or corrupted file can
// never poison the player's saved state.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Well-known keys for the player's saved state.
const (
	KeyPlaylist = "playlist"
	KeyIndex    = "current_index"
	KeyTime     = "current_time"
)

// Store persists JSON values under a root directory, one file per key.
type Store struct {
	mu   sync.Mutex
	root string
	log  *zap.Logger
}

// Open creates the root directory if needed and returns a Store over it.
func Open(root string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{root: root, log: log}, nil
}

// Get reads the value stored under key. Missing files, unreadable files and
// malformed JSON all yield def.
func Get[T any](s *Store, key string, def T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return def
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		s.log.Warn("discarding malformed state", zap.String("key", key), zap.Error(err))
		return def
	}
	return value
}

// Set stores value under key. Persistence is best-effort: failures are
// logged and swallowed so a full disk never interrupts playback.
func Set[T any](s *Store, key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		s.log.Warn("marshal state", zap.String("key", key), zap.Error(err))
		return
	}
	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn("write state", zap.String("key", key), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, target); err != nil {
		s.log.Warn("rename state", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the value stored under key, if any.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("remove state", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, key+".json")
}
