// Package redisstore keeps gateway sessions in Redis so that a ColdStart
// served by one replica can be answered on another. Expiry is delegated to
// Redis and single use comes from GETDEL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/gateway"
)

const defaultPrefix = "openfeeder:session:"

// Client is the subset of go-redis used here.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// Store implements gateway.SessionStore.
type Store struct {
	client Client
	prefix string
	ttl    time.Duration
	clock  feed.Clock
	ids    feed.IDGenerator
}

var _ gateway.SessionStore = (*Store)(nil)

// New builds a Store.
func New(client Client, prefix string, ttl time.Duration, clock feed.Clock, ids feed.IDGenerator) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = gateway.DefaultSessionTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl, clock: clock, ids: ids}, nil
}

// TTL reports the session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores the session with SET EX.
func (s *Store) Create(ctx context.Context, pc gateway.PageContext) (gateway.Session, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return gateway.Session{}, fmt.Errorf("session id: %w", err)
	}
	sess := gateway.Session{ID: id, Context: pc, CreatedAt: s.clock.Now()}
	data, err := json.Marshal(sess)
	if err != nil {
		return gateway.Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return gateway.Session{}, fmt.Errorf("redis set session: %w", err)
	}
	return sess, nil
}

// Take atomically reads and deletes the session.
func (s *Store) Take(ctx context.Context, id string) (gateway.Session, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return gateway.Session{}, gateway.ErrSessionNotFound
	}
	if err != nil {
		return gateway.Session{}, fmt.Errorf("redis getdel session: %w", err)
	}
	var sess gateway.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return gateway.Session{}, fmt.Errorf("decode session: %w", err)
	}
	// Redis expiry has second granularity; enforce the TTL exactly.
	if s.clock.Now().Sub(sess.CreatedAt) >= s.ttl {
		return gateway.Session{}, gateway.ErrSessionNotFound
	}
	return sess, nil
}
