// Package redis provides a cache.Store backed by Redis. Payloads are stored
// with their creation time so the age of a hit can always be disclosed, and
// tags are kept as Redis sets of member keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/openfeeder/internal/cache"
	"github.com/JakeFAU/openfeeder/internal/feed"
)

const defaultPrefix = "openfeeder:cache:"

// Client is the subset of the go-redis API the store needs; *redis.Client
// satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *goredis.IntCmd
	SMembers(ctx context.Context, key string) *goredis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// Config controls key namespacing and TTL.
type Config struct {
	Prefix string
	TTL    time.Duration
}

// Store implements cache.Store on Redis.
type Store struct {
	client Client
	prefix string
	ttl    time.Duration
	clock  feed.Clock
}

type envelope struct {
	CreatedAt time.Time `json:"created_at"`
	Payload   []byte    `json:"payload"`
}

// New wires a Store to an existing client.
func New(client Client, cfg Config, clock feed.Clock) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	return &Store{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, clock: clock}, nil
}

// Get loads and decodes an entry, treating redis.Nil and stale envelopes as a miss.
func (s *Store) Get(ctx context.Context, key cache.Key) (cache.Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return cache.Entry{}, false, fmt.Errorf("decode cache envelope: %w", err)
	}
	age := s.clock.Now().Sub(env.CreatedAt)
	if age >= s.ttl {
		return cache.Entry{}, false, nil
	}
	if age < 0 {
		age = 0
	}
	return cache.Entry{Payload: env.Payload, CreatedAt: env.CreatedAt, Age: age}, true, nil
}

// Set writes the envelope with the store TTL and registers tag membership.
func (s *Store) Set(ctx context.Context, key cache.Key, payload []byte) error {
	data, err := json.Marshal(envelope{CreatedAt: s.clock.Now(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode cache envelope: %w", err)
	}
	name := s.prefix + key.String()
	if err := s.client.Set(ctx, name, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	for _, tag := range key.Tags() {
		tagKey := s.prefix + tag
		if err := s.client.SAdd(ctx, tagKey, name).Err(); err != nil {
			return fmt.Errorf("redis sadd %s: %w", tag, err)
		}
		if err := s.client.Expire(ctx, tagKey, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire %s: %w", tag, err)
		}
	}
	return nil
}

// Invalidate deletes a key, or every member of a tag set plus the set itself.
// Only tag names are read as sets; plain keys hold string values.
func (s *Store) Invalidate(ctx context.Context, keyOrTag string) error {
	name := s.prefix + keyOrTag
	keys := []string{name}
	if cache.IsTag(keyOrTag) {
		members, err := s.client.SMembers(ctx, name).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("redis smembers: %w", err)
		}
		keys = append(keys, members...)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
