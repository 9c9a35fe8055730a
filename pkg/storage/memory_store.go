package storage

import "sync"

// MemoryStore is an in-memory Adapter. Its contents live only as long as the
// process; it is intended for tests, examples, and session-only state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]string
	quota   quota
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryQuota caps the total key+value bytes the store accepts.
func WithMemoryQuota(bytes int64) MemoryOption {
	return func(s *MemoryStore) {
		s.quota.limit = bytes
	}
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{records: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	value, ok := s.records[key]
	s.mu.RUnlock()
	return value, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous int64
	if old, ok := s.records[key]; ok {
		previous = entrySize(key, old)
	}
	next := entrySize(key, value)
	if err := s.quota.admit(previous, next); err != nil {
		return err
	}
	s.records[key] = value
	s.quota.apply(previous, next)
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.records[key]; ok {
		s.quota.apply(entrySize(key, old), 0)
		delete(s.records, key)
	}
	return nil
}

// Keys returns a snapshot of the stored keys in no particular order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	return keys
}
