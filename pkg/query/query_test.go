package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devblin/infisical/pkg/query"
	"github.com/devblin/infisical/pkg/query/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestClient() (*query.Client, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	client := query.NewClient(query.ClientConfig{
		Store:     inmemory.New(),
		StaleTime: time.Minute,
		CacheTime: time.Hour,
		Now:       clock.Now,
	})

	return client, clock
}

func countingQuery(key string, calls *atomic.Int32) query.Query[[]item] {
	return query.Query[[]item]{
		Key:     key,
		Enabled: true,
		Fetch: func(ctx context.Context) ([]item, error) {
			n := calls.Add(1)
			return []item{{Name: key, Count: int(n)}}, nil
		},
	}
}

func TestFetch_Disabled(t *testing.T) {
	client, _ := newTestClient()

	var calls atomic.Int32
	q := countingQuery("secrets/ws/dev", &calls)
	q.Enabled = false

	_, err := query.Fetch(context.Background(), client, q)
	assert.ErrorIs(t, err, query.ErrQueryDisabled)
	assert.Zero(t, calls.Load())
}

func TestFetch_FreshCacheHit(t *testing.T) {
	client, clock := newTestClient()

	var calls atomic.Int32
	q := countingQuery("secrets/ws/dev", &calls)

	first, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	second, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_StaleRefetch(t *testing.T) {
	client, clock := newTestClient()

	var calls atomic.Int32
	q := countingQuery("secrets/ws/dev", &calls)

	_, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	result, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, result[0].Count)
}

func TestFetch_PerQueryStaleTime(t *testing.T) {
	client, clock := newTestClient()

	var calls atomic.Int32
	q := countingQuery("secrets/ws/dev", &calls)
	q.StaleTime = 5 * time.Second

	_, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)

	_, err = query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_DeduplicatesInFlight(t *testing.T) {
	client, _ := newTestClient()

	var calls atomic.Int32
	release := make(chan struct{})

	q := query.Query[[]item]{
		Key:     "secrets/ws/dev",
		Enabled: true,
		Fetch: func(ctx context.Context) ([]item, error) {
			calls.Add(1)
			<-release
			return []item{{Name: "shared"}}, nil
		},
	}

	var wg sync.WaitGroup
	results := make([][]item, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := query.Fetch(context.Background(), client, q)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		assert.Equal(t, []item{{Name: "shared"}}, res)
	}
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	client, _ := newTestClient()

	var calls atomic.Int32
	q := query.Query[[]item]{
		Key:     "secrets/ws/dev",
		Enabled: true,
		Fetch: func(ctx context.Context) ([]item, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("boom")
			}
			return []item{{Name: "ok"}}, nil
		},
	}

	_, err := query.Fetch(context.Background(), client, q)
	require.EqualError(t, err, "boom")

	result, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)
	assert.Equal(t, "ok", result[0].Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidate_ExactKeys(t *testing.T) {
	client, _ := newTestClient()

	var devCalls, prodCalls atomic.Int32
	dev := countingQuery("secrets/ws/dev", &devCalls)
	prod := countingQuery("secrets/ws/prod", &prodCalls)

	_, err := query.Fetch(context.Background(), client, dev)
	require.NoError(t, err)
	_, err = query.Fetch(context.Background(), client, prod)
	require.NoError(t, err)

	require.NoError(t, client.Invalidate(context.Background(), "secrets/ws/dev"))

	_, err = query.Fetch(context.Background(), client, dev)
	require.NoError(t, err)
	_, err = query.Fetch(context.Background(), client, prod)
	require.NoError(t, err)

	assert.Equal(t, int32(2), devCalls.Load())
	assert.Equal(t, int32(1), prodCalls.Load())
}

func TestFetch_WithoutStore(t *testing.T) {
	client := query.NewClient(query.ClientConfig{})

	var calls atomic.Int32
	q := countingQuery("k", &calls)

	_, err := query.Fetch(context.Background(), client, q)
	require.NoError(t, err)
	_, err = query.Fetch(context.Background(), client, q)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.NoError(t, client.Invalidate(context.Background(), "k"))
}

func TestFetch_InvalidatedDuringFetchIsNotCached(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	q := query.Query[string]{
		Key:     "secrets/ws/dev",
		Enabled: true,
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return "pre-batch", nil
			}
			return "post-batch", nil
		},
	}

	done := make(chan string)
	go func() {
		res, err := query.Fetch(ctx, client, q)
		assert.NoError(t, err)
		done <- res
	}()

	<-started
	require.NoError(t, client.Invalidate(ctx, "secrets/ws/dev"))
	close(release)
	assert.Equal(t, "pre-batch", <-done)

	res, err := query.Fetch(ctx, client, q)
	require.NoError(t, err)
	assert.Equal(t, "post-batch", res)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_CanceledCallerDoesNotFailWaiters(t *testing.T) {
	client, _ := newTestClient()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	q := query.Query[string]{
		Key:     "secrets/ws/dev",
		Enabled: true,
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return "shared", nil
		},
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error)
	go func() {
		_, err := query.Fetch(firstCtx, client, q)
		firstErr <- err
	}()
	<-started

	second := make(chan string)
	go func() {
		res, err := query.Fetch(context.Background(), client, q)
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "shared", <-second)
	assert.Equal(t, int32(1), calls.Load())
}
