package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every entry in a single JSON document on disk. Each Set or
// Remove rewrites the document atomically, so a crash leaves either the old
// or the new document, never a partial one.
type FileStore struct {
	mu        sync.RWMutex
	path      string
	records   map[string]string
	quota     quota
	recovered bool
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileQuota caps the total key+value bytes the store accepts.
func WithFileQuota(bytes int64) FileOption {
	return func(s *FileStore) {
		s.quota.limit = bytes
	}
}

// OpenFileStore loads path (creating parent directories as needed). A missing
// file is an empty store. A file that cannot be parsed is also treated as
// empty and Recovered reports true; it is replaced on the next write.
func OpenFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}

	s := &FileStore{path: path, records: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &s.records); err != nil || s.records == nil {
			s.records = map[string]string{}
			s.recovered = true
		}
	}

	for key, value := range s.records {
		s.quota.apply(0, entrySize(key, value))
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Recovered reports whether an unreadable document was discarded on open.
func (s *FileStore) Recovered() bool {
	return s.recovered
}

func (s *FileStore) Get(key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	value, ok := s.records[key]
	s.mu.RUnlock()
	return value, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.records[key]
	var previous int64
	if existed {
		previous = entrySize(key, old)
	}
	next := entrySize(key, value)
	if err := s.quota.admit(previous, next); err != nil {
		return err
	}

	s.records[key] = value
	if err := s.flush(); err != nil {
		if existed {
			s.records[key] = old
		} else {
			delete(s.records, key)
		}
		return err
	}
	s.quota.apply(previous, next)
	return nil
}

func (s *FileStore) Remove(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[key]
	if !ok {
		return nil
	}
	delete(s.records, key)
	if err := s.flush(); err != nil {
		s.records[key] = old
		return err
	}
	s.quota.apply(entrySize(key, old), 0)
	return nil
}

func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode document: %w", err)
	}
	return atomicWriteFile(s.path, data, 0o600)
}

// atomicWriteFile writes to a temp file in the target directory, syncs it,
// and renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("storage: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("storage: chmod temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("storage: rename temp file: %w", err)
	}
	success = true
	return nil
}
