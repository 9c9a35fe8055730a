package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuotaExceeded reports a Set rejected because the store is full.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrInvalidKey reports an empty key.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Adapter is a synchronous string key-value store.
type Adapter interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Ref identifies one stored entry inside an origin.
type Ref struct {
	Origin string
	Key    string
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	if strings.TrimSpace(r.Key) == "" {
		return "", fmt.Errorf("%w: key is required", ErrInvalidKey)
	}
	origin := strings.TrimSpace(r.Origin)
	if origin == "" {
		return r.Key, nil
	}
	return origin + "/" + r.Key, nil
}

type scoped struct {
	next   Adapter
	origin string
}

// Scoped returns an Adapter that namespaces every key under origin.
func Scoped(next Adapter, origin string) Adapter {
	if next == nil {
		return nil
	}
	if strings.TrimSpace(origin) == "" {
		return next
	}
	return &scoped{next: next, origin: origin}
}

func (s *scoped) key(key string) (string, error) {
	return Ref{Origin: s.origin, Key: key}.Identifier()
}

func (s *scoped) Get(key string) (string, bool, error) {
	id, err := s.key(key)
	if err != nil {
		return "", false, err
	}
	return s.next.Get(id)
}

func (s *scoped) Set(key, value string) error {
	id, err := s.key(key)
	if err != nil {
		return err
	}
	return s.next.Set(id, value)
}

func (s *scoped) Remove(key string) error {
	id, err := s.key(key)
	if err != nil {
		return err
	}
	return s.next.Remove(id)
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidKey)
	}
	return nil
}

// quota tracks the byte footprint of stored entries against a limit. A zero
// limit disables the check.
type quota struct {
	limit int64
	used  int64
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// admit reports whether replacing an entry of previous bytes with next bytes
// fits the limit.
func (q *quota) admit(previous, next int64) error {
	if q.limit <= 0 {
		return nil
	}
	if q.used-previous+next > q.limit {
		return fmt.Errorf("%w: %d of %d bytes used", ErrQuotaExceeded, q.used, q.limit)
	}
	return nil
}

func (q *quota) apply(previous, next int64) {
	q.used += next - previous
}
