package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var ErrQueryDisabled = errors.New("query is disabled")

const (
	DefaultStaleTime = 30 * time.Second
	DefaultCacheTime = 5 * time.Minute
)

type ClientConfig struct {
	Store     Store
	StaleTime time.Duration
	CacheTime time.Duration
	Now       func() time.Time
}

type Client struct {
	store     Store
	group     singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64

	staleTime time.Duration
	cacheTime time.Duration
	now       func() time.Time
}

func NewClient(config ClientConfig) *Client {
	staleTime := config.StaleTime
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}

	cacheTime := config.CacheTime
	if cacheTime <= 0 {
		cacheTime = DefaultCacheTime
	}

	if cacheTime < staleTime {
		cacheTime = staleTime
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		store:       config.Store,
		generations: make(map[string]uint64),
		staleTime:   staleTime,
		cacheTime:   cacheTime,
		now:         now,
	}
}

// Query describes one keyed fetch. A disabled query never touches the cache
// or calls Fetch.
type Query[T any] struct {
	Key       string
	Enabled   bool
	StaleTime time.Duration
	Fetch     func(ctx context.Context) (T, error)
}

// Fetch returns the cached value for q.Key while it is fresh, otherwise runs
// q.Fetch once per key no matter how many callers are waiting.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) (T, error) {
	var zero T

	if !q.Enabled {
		return zero, ErrQueryDisabled
	}

	if q.Fetch == nil {
		return zero, fmt.Errorf("query %s has no fetch function", q.Key)
	}

	staleTime := q.StaleTime
	if staleTime <= 0 {
		staleTime = c.staleTime
	}

	if c.store != nil {
		entry, ok, err := c.store.Get(ctx, q.Key)
		if err != nil {
			log.Warn().Err(err).Str("query_key", q.Key).Msg("Failed to read query cache")
		}

		if ok && c.now().Sub(entry.FetchedAt) < staleTime {
			var value T
			if err := json.Unmarshal(entry.Data, &value); err == nil {
				return value, nil
			}

			log.Warn().Str("query_key", q.Key).Msg("Discarding undecodable query cache entry")
		}
	}

	// The shared fetch outlives any single caller; each caller stops waiting
	// on its own context.
	fetchCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(q.Key, func() (any, error) {
		generation := c.generation(q.Key)

		value, err := q.Fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query result: %w", err)
		}

		if c.store != nil {
			c.storeIfCurrent(fetchCtx, q.Key, generation, data)
		}

		return json.RawMessage(data), nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		return zero, res.Err
	}

	var value T
	if err := json.Unmarshal(res.Val.(json.RawMessage), &value); err != nil {
		return zero, fmt.Errorf("failed to decode query result: %w", err)
	}

	return value, nil
}

func (c *Client) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[key]
}

// storeIfCurrent caches data unless key was invalidated after generation was
// read. The lock orders the write before or after any Invalidate of key.
func (c *Client) storeIfCurrent(ctx context.Context, key string, generation uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key] != generation {
		log.Debug().Str("query_key", key).Msg("Query invalidated during fetch, not caching result")
		return
	}

	entry := Entry{Data: data, FetchedAt: c.now()}
	if err := c.store.Set(ctx, key, entry, c.cacheTime); err != nil {
		log.Warn().Err(err).Str("query_key", key).Msg("Failed to write query cache")
	}
}

// Invalidate drops the cached entries stored under exactly the given keys.
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	if c.store == nil || len(keys) == 0 {
		return nil
	}

	c.mu.Lock()
	for _, key := range keys {
		c.generations[key]++
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.group.Forget(key)
	}

	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate queries: %w", err)
	}

	log.Debug().Strs("query_keys", keys).Msg("Invalidated queries")

	return nil
}
