package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	applogger "MarketPulse/pkg/logger"
)

// FileStateStore persists engine state as one JSON document per key under a
// state directory. Writes go through a temp file and rename so a crash mid
// write never corrupts the previous snapshot.
type FileStateStore struct {
	dir string
	l   *applogger.Logger

	mu sync.Mutex
}

// NewFileStateStore creates the state directory if needed.
func NewFileStateStore(dir string, l *applogger.Logger) (*FileStateStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStateStore{dir: dir, l: l}, nil
}

func (s *FileStateStore) Load(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read state %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A truncated or hand-edited document is treated as absent so the
		// engine can rebuild state instead of failing startup.
		if s.l != nil {
			s.l.Warn("state document unreadable, ignoring",
				applogger.String("key", key),
				applogger.Error(err))
		}
		return false, nil
	}
	return true, nil
}

func (s *FileStateStore) Save(_ context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("commit state %s: %w", key, err)
	}
	return nil
}

func (s *FileStateStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
