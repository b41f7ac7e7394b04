// Package store implements the file-backed message log, one JSON document
// per room under a configurable data directory.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists each room's log as a single JSON array on disk.
// Appends for the same room are serialized by a per-room mutex so the
// load-modify-store cycle cannot interleave; different rooms never contend.
type FileStore struct {
	dir   string
	limit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed. limit caps the number of retained messages per room; values <= 0
// fall back to DefaultHistoryLimit.
func NewFileStore(dir string, limit int) (*FileStore, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:   dir,
		limit: limit,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// roomLock returns the mutex serializing appends for one room.
func (s *FileStore) roomLock(roomID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[roomID] = lock
	}
	return lock
}

// roomPath maps a room id to its log file. Room ids arrive from clients, so
// anything outside a conservative character set is escaped to keep the path
// inside the data directory.
func (s *FileStore) roomPath(roomID string) string {
	var b strings.Builder
	for _, r := range roomID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "%%%04x", r)
		}
	}
	if b.Len() == 0 {
		b.WriteString("%empty")
	}
	return filepath.Join(s.dir, b.String()+".json")
}

func (s *FileStore) readLog(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading room log %s: %w", path, err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decoding room log %s: %w", path, err)
	}
	return messages, nil
}

func (s *FileStore) writeLog(path string, messages []Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding room log: %w", err)
	}

	// Write-then-rename so a crash mid-write never leaves a truncated log.
	tmp, err := os.CreateTemp(s.dir, ".room-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing room log %s: %w", path, err)
	}
	return nil
}

// Append adds one message to the room's log, evicting the oldest entries
// once the retention cap is exceeded.
func (s *FileStore) Append(ctx context.Context, roomID string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	path := s.roomPath(roomID)
	messages, err := s.readLog(path)
	if err != nil {
		return err
	}

	messages = append(messages, msg)
	if len(messages) > s.limit {
		messages = messages[len(messages)-s.limit:]
	}

	return s.writeLog(path, messages)
}

// LoadHistory returns the most recent limit messages for the room, oldest
// first. A missing log file is an empty history, not an error.
func (s *FileStore) LoadHistory(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	messages, err := s.readLog(s.roomPath(roomID))
	if err != nil {
		return nil, err
	}
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Close is a no-op for the file store; every append is durable on return.
func (s *FileStore) Close(_ context.Context) error {
	return nil
}
