package redisstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/gopherchat/internal/session"
)

// newTestStore uses a real server when REDIS_TEST_ADDR is set and an
// in-process miniredis otherwise. The miniredis handle is nil for a real server.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		s, err := New(addr, os.Getenv("REDIS_TEST_PASSWORD"), 0)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s, nil
	}

	mr := miniredis.RunT(t)
	s, err := New(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_KV(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := "gopherchat:test:" + uuid.NewString()
	t.Cleanup(func() { _ = s.Del(ctx, key) })

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, session.ErrKeyNotFound)

	ok, err := s.SetNX(ctx, key, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, s.Del(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, session.ErrKeyNotFound)
}

func TestStore_KeysExpire(t *testing.T) {
	s, mr := newTestStore(t)
	if mr == nil {
		t.Skip("needs a controllable clock")
	}
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "login", "v", time.Minute))
	mr.FastForward(time.Minute)

	_, err := s.Get(ctx, "login")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)
}

func TestStore_Registry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	reg := session.NewRegistry(s, time.Minute, "gopherchat:test:"+uuid.NewString()+":")

	p, err := reg.Login(ctx, 42)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Invalidate(ctx, p.Handle) })

	first, err := reg.CreateOrGetSession(ctx, p.Handle)
	require.NoError(t, err)
	second, err := reg.CreateOrGetSession(ctx, p.Handle)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_RegistryConcurrentFirstUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	reg := session.NewRegistry(s, time.Minute, "gopherchat:test:"+uuid.NewString()+":")

	p, err := reg.Login(ctx, 7)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Invalidate(ctx, p.Handle) })

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = reg.CreateOrGetSession(ctx, p.Handle)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	stored, ok, err := reg.SessionID(ctx, p.Handle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids[0], stored)
}
