package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openfeeder/internal/gateway"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixedID struct{ id string }

func (f fixedID) NewID() (string, error) { return f.id, nil }

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) GetDel(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.values, key)
	return redis.NewStringResult(v, nil)
}

const sid = "2f1b6f0e-8c1e-4f55-9f0a-3b1d2c4e5f60"

func TestCreateTakeSingleUse(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	clk := &fakeClock{now: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	s, err := New(client, "", 0, clk, fixedID{id: sid})
	require.NoError(t, err)
	ctx := context.Background()

	pc := gateway.PageContext{URL: "/product/x", Type: gateway.PageProduct, Topic: "x"}
	sess, err := s.Create(ctx, pc)
	require.NoError(t, err)
	require.Equal(t, gateway.DefaultSessionTTL, client.ttls[defaultPrefix+sid])

	got, err := s.Take(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, pc, got.Context)
	require.True(t, sess.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Take(ctx, sess.ID)
	require.ErrorIs(t, err, gateway.ErrSessionNotFound)
}

func TestTakeEnforcesTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	s, err := New(newFakeRedis(), "p:", time.Minute, clk, fixedID{id: sid})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), gateway.PageContext{URL: "/"})
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Minute)
	_, err = s.Take(context.Background(), sid)
	require.ErrorIs(t, err, gateway.ErrSessionNotFound)
}

func TestErrorsPropagate(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.err = errors.New("connection refused")
	s, err := New(client, "", 0, &fakeClock{}, fixedID{id: sid})
	require.NoError(t, err)

	_, err = s.Create(context.Background(), gateway.PageContext{})
	require.ErrorContains(t, err, "connection refused")
	_, err = s.Take(context.Background(), sid)
	require.ErrorContains(t, err, "connection refused")
	require.NotErrorIs(t, err, gateway.ErrSessionNotFound)

	_, err = New(nil, "", 0, &fakeClock{}, fixedID{})
	require.Error(t, err)
}
