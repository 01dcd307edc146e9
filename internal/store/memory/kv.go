package memory

import (
	"context"
	"sync"
	"time"

	"github.com/suPer8Hu/gopherchat/internal/session"
)

var _ session.KV = (*KV)(nil)

type kvEntry struct {
	value     string
	expiresAt time.Time
}

// KV is an expiring key-value map for the session registry.
// Expired entries are dropped lazily on access.
type KV struct {
	mu   sync.Mutex
	data map[string]kvEntry
	now  func() time.Time
}

func NewKV() *KV {
	return &KV{data: make(map[string]kvEntry), now: time.Now}
}

// NewKVWithClock is NewKV with a controllable clock.
func NewKVWithClock(now func() time.Time) *KV {
	return &KV{data: make(map[string]kvEntry), now: now}
}

// live returns the entry for key if present and not expired. Caller holds mu.
func (kv *KV) live(key string) (kvEntry, bool) {
	e, ok := kv.data[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expiresAt.IsZero() && !kv.now().Before(e.expiresAt) {
		delete(kv.data, key)
		return kvEntry{}, false
	}
	return e, true
}

func (kv *KV) entry(value string, ttl time.Duration) kvEntry {
	e := kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = kv.now().Add(ttl)
	}
	return e
}

func (kv *KV) Get(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.live(key)
	if !ok {
		return "", session.ErrKeyNotFound
	}
	return e.value, nil
}

func (kv *KV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.data[key] = kv.entry(value, ttl)
	return nil
}

func (kv *KV) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok := kv.live(key); ok {
		return false, nil
	}
	kv.data[key] = kv.entry(value, ttl)
	return true, nil
}

func (kv *KV) Del(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	for _, k := range keys {
		delete(kv.data, k)
	}
	return nil
}

func (kv *KV) Ping(context.Context) error { return nil }
