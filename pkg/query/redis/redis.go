package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/query"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "infisical:query"

type Opts struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	TLS       bool
	KeyPrefix string
}

type Store struct {
	client    *redis.Client
	keyPrefix string
}

func New(ctx context.Context, opts Opts) (*Store, error) {
	var tlsConfig *tls.Config
	if opts.TLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(&redis.Options{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConfig,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, opts.KeyPrefix), nil
}

func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *Store) key(key string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, key)
}

func (s *Store) Get(ctx context.Context, key string) (query.Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return query.Entry{}, false, nil
	}
	if err != nil {
		return query.Entry{}, false, fmt.Errorf("failed to get query entry: %w", err)
	}

	var entry query.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return query.Entry{}, false, fmt.Errorf("failed to unmarshal query entry: %w", err)
	}

	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry query.Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal query entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set query entry: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.key(key)
	}

	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete query entries: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
