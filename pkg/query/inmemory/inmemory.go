package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/devblin/infisical/pkg/query"
)

type item struct {
	entry     query.Entry
	expiresAt time.Time
}

type Store struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

func New() *Store {
	return &Store{
		items: make(map[string]item),
		now:   time.Now,
	}
}

func (s *Store) Get(ctx context.Context, key string) (query.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[key]
	if !ok {
		return query.Entry{}, false, nil
	}

	if !it.expiresAt.IsZero() && s.now().After(it.expiresAt) {
		return query.Entry{}, false, nil
	}

	return it.entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry query.Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := item{entry: entry}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}

	s.items[key] = it

	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}

	return nil
}

// Len counts entries including expired ones not yet overwritten.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}
