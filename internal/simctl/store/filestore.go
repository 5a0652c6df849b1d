package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/simulationcontrol/simctl/pkg/errors"
)

// FileStore persists the whole key space as one JSON document on disk,
// the native-shell equivalent of the original desktop store file. Writes
// rewrite the file atomically via a temp file and rename.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	data   map[string]json.RawMessage
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store at path. The file is created lazily on
// first write; a missing file reads as empty.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, false, errors.WrapStorageError(key, "get", err)
	}
	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.WrapStorageError(key, "set", fmt.Errorf("empty key"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return errors.WrapStorageError(key, "set", err)
	}
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.data[key] = stored
	if err := s.flushLocked(); err != nil {
		return errors.WrapStorageError(key, "set", err)
	}
	return nil
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return errors.WrapStorageError(key, "remove", err)
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	if err := s.flushLocked(); err != nil {
		return errors.WrapStorageError(key, "remove", err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.data = make(map[string]json.RawMessage)
	if err := s.flushLocked(); err != nil {
		return errors.WrapStorageError("", "clear", err)
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, errors.WrapStorageError("", "keys", err)
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.data = make(map[string]json.RawMessage)
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	contents := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &contents); err != nil {
			return fmt.Errorf("corrupt store file %s: %w", s.path, err)
		}
	}
	s.data = contents
	s.loaded = true
	return nil
}

func (s *FileStore) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".simctl-store-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
