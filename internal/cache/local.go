package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Local is a process-local store used with the in-memory storage driver and
// in tests.
type Local struct {
	mu         sync.Mutex
	entries    map[string]localEntry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewLocal builds an empty process-local store.
func NewLocal(defaultTTL time.Duration) *Local {
	return &Local{
		entries:    make(map[string]localEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !l.now().Before(entry.expiresAt) {
		delete(l.entries, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = l.now().Add(ttl)
	}
	l.entries[key] = entry
	return nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
