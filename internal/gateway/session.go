package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/feed"
)

// DefaultSessionTTL bounds how long a ColdStart session can be answered.
const DefaultSessionTTL = 5 * time.Minute

// ErrSessionNotFound is returned by Take for unknown, consumed or expired ids.
var ErrSessionNotFound = errors.New("session not found")

// Session holds the page context between ColdStart and Respond.
type Session struct {
	ID        string      `json:"id"`
	Context   PageContext `json:"context"`
	CreatedAt time.Time   `json:"created_at"`
}

// SessionStore persists single-use sessions. Take is read-and-delete: a
// session can be taken at most once, and never after its TTL.
type SessionStore interface {
	Create(ctx context.Context, pc PageContext) (Session, error)
	Take(ctx context.Context, id string) (Session, error)
}

// MemoryStore is an in-process SessionStore with a periodic sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	clock    feed.Clock
	ids      feed.IDGenerator
	logger   *zap.Logger

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	onSweep func(removed int)
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore builds a store. The sweep does not run until Start.
func NewMemoryStore(ttl time.Duration, clock feed.Clock, ids feed.IDGenerator, logger *zap.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// TTL reports the session lifetime.
func (s *MemoryStore) TTL() time.Duration { return s.ttl }

// Create opens a session for pc.
func (s *MemoryStore) Create(_ context.Context, pc PageContext) (Session, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return Session{}, fmt.Errorf("session id: %w", err)
	}
	sess := Session{ID: id, Context: pc, CreatedAt: s.clock.Now()}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess, nil
}

// Take removes and returns the session. An expired entry is removed too but
// reported as not found.
func (s *MemoryStore) Take(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok || s.expired(sess, s.clock.Now()) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Len reports the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// OnSweep registers fn to receive the count of every background sweep. It
// must be called before Start.
func (s *MemoryStore) OnSweep(fn func(removed int)) {
	s.runMu.Lock()
	s.onSweep = fn
	s.runMu.Unlock()
}

// Start runs Sweep every interval until ctx ends or Stop is called. Calling
// Start on a running store is a no-op.
func (s *MemoryStore) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.sweepLoop(ctx, interval, s.done, s.onSweep)
}

// Stop halts the sweep and waits for it to exit.
func (s *MemoryStore) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *MemoryStore) sweepLoop(ctx context.Context, interval time.Duration, done chan struct{}, onSweep func(int)) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.Sweep()
			if n > 0 {
				s.logger.Debug("swept expired gateway sessions", zap.Int("removed", n))
			}
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *MemoryStore) expired(sess Session, now time.Time) bool {
	return now.Sub(sess.CreatedAt) >= s.ttl
}
