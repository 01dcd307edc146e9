package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/session"
	"github.com/suPer8Hu/gopherchat/internal/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRegistry(t *testing.T) (*session.Registry, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	kv := memory.NewKVWithClock(clk.Now)
	return session.NewRegistry(kv, 30*24*time.Hour, "test:", session.WithClock(clk.Now)), clk
}

func TestRegistry_LoginResolve(t *testing.T) {
	reg, clk := newRegistry(t)
	ctx := context.Background()

	p, err := reg.Login(ctx, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Handle)
	assert.Equal(t, clk.Now().Add(30*24*time.Hour), p.ExpiresAt)

	got, err := reg.Resolve(ctx, p.Handle)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.UserID)

	_, err = reg.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	_, err = reg.Resolve(ctx, "")
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestRegistry_CreateOrGetSessionIsIdempotent(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	p, err := reg.Login(ctx, 1)
	require.NoError(t, err)

	_, ok, err := reg.SessionID(ctx, p.Handle)
	require.NoError(t, err)
	assert.False(t, ok, "lookup must not create a session id")

	first, err := reg.CreateOrGetSession(ctx, p.Handle)
	require.NoError(t, err)
	second, err := reg.CreateOrGetSession(ctx, p.Handle)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 26)

	id, ok, err := reg.SessionID(ctx, p.Handle)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, id)
}

func TestRegistry_SeparateLoginsGetSeparateSessions(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	a, err := reg.Login(ctx, 1)
	require.NoError(t, err)
	b, err := reg.Login(ctx, 1)
	require.NoError(t, err)

	sa, err := reg.CreateOrGetSession(ctx, a.Handle)
	require.NoError(t, err)
	sb, err := reg.CreateOrGetSession(ctx, b.Handle)
	require.NoError(t, err)
	assert.NotEqual(t, sa, sb)
}

func TestRegistry_ConcurrentFirstCallsAgree(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	p, err := reg.Login(ctx, 1)
	require.NoError(t, err)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := reg.CreateOrGetSession(ctx, p.Handle)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestRegistry_Invalidate(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	p, err := reg.Login(ctx, 1)
	require.NoError(t, err)
	before, err := reg.CreateOrGetSession(ctx, p.Handle)
	require.NoError(t, err)

	require.NoError(t, reg.Invalidate(ctx, p.Handle))

	_, err = reg.Resolve(ctx, p.Handle)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	_, err = reg.CreateOrGetSession(ctx, p.Handle)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)

	again, err := reg.Login(ctx, 1)
	require.NoError(t, err)
	after, err := reg.CreateOrGetSession(ctx, again.Handle)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestRegistry_AbsoluteExpiry(t *testing.T) {
	reg, clk := newRegistry(t)
	ctx := context.Background()

	p, err := reg.Login(ctx, 1)
	require.NoError(t, err)

	clk.Advance(29 * 24 * time.Hour)
	id, err := reg.CreateOrGetSession(ctx, p.Handle)
	require.NoError(t, err)

	// reads do not extend the login
	_, err = reg.Resolve(ctx, p.Handle)
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	_, err = reg.Resolve(ctx, p.Handle)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	_, err = reg.CreateOrGetSession(ctx, p.Handle)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.NotEmpty(t, id)
}

type failingKV struct{ session.KV }

func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection reset")
}

func TestRegistry_StorageFailure(t *testing.T) {
	reg := session.NewRegistry(failingKV{memory.NewKV()}, time.Hour, "test:")

	_, err := reg.Login(context.Background(), 1)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}
