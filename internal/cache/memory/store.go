// Package memory provides an in-process cache.Store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/openfeeder/internal/cache"
	"github.com/JakeFAU/openfeeder/internal/feed"
)

type entry struct {
	payload   []byte
	createdAt time.Time
}

// Store keeps entries in a map guarded by a RWMutex. Expired entries are
// treated as absent on read and removed by Sweep.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	tags    map[string]map[string]struct{}
	ttl     time.Duration
	clock   feed.Clock
}

// New constructs a Store with the given TTL (cache.DefaultTTL when <= 0).
func New(ttl time.Duration, clock feed.Clock) *Store {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Store{
		entries: make(map[string]entry),
		tags:    make(map[string]map[string]struct{}),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns a live entry and its age.
func (s *Store) Get(_ context.Context, key cache.Key) (cache.Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key.String()]
	s.mu.RUnlock()
	if !ok {
		return cache.Entry{}, false, nil
	}
	age := s.clock.Now().Sub(e.createdAt)
	if age >= s.ttl {
		return cache.Entry{}, false, nil
	}
	if age < 0 {
		age = 0
	}
	return cache.Entry{
		Payload:   append([]byte(nil), e.payload...),
		CreatedAt: e.createdAt,
		Age:       age,
	}, true, nil
}

// Set stores a copy of payload, replacing any previous entry.
func (s *Store) Set(_ context.Context, key cache.Key, payload []byte) error {
	name := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = entry{
		payload:   append([]byte(nil), payload...),
		createdAt: s.clock.Now(),
	}
	for _, tag := range key.Tags() {
		members, ok := s.tags[tag]
		if !ok {
			members = make(map[string]struct{})
			s.tags[tag] = members
		}
		members[name] = struct{}{}
	}
	return nil
}

// Invalidate drops a key or every key under a tag.
func (s *Store) Invalidate(_ context.Context, keyOrTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, keyOrTag)
	for name := range s.tags[keyOrTag] {
		delete(s.entries, name)
	}
	delete(s.tags, keyOrTag)
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, e := range s.entries {
		if now.Sub(e.createdAt) >= s.ttl {
			delete(s.entries, name)
			removed++
		}
	}
	for tag, members := range s.tags {
		for name := range members {
			if _, ok := s.entries[name]; !ok {
				delete(members, name)
			}
		}
		if len(members) == 0 {
			delete(s.tags, tag)
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
