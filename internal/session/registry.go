package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/gopherchat/internal/common"
)

var ErrKeyNotFound = errors.New("session: key not found")

// KV is the expiring key-value store behind the registry.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Principal is an authenticated login.
type Principal struct {
	Handle    string
	UserID    uint64
	ExpiresAt time.Time
}

type record struct {
	UserID    uint64    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Registry maps opaque login handles to users and to the one conversation
// session id issued for that login. Expiry is absolute from login.
type Registry struct {
	kv     KV
	ttl    time.Duration
	prefix string
	now    func() time.Time
	newID  func() (string, error)
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newID = gen }
}

func NewRegistry(kv KV, ttl time.Duration, prefix string, opts ...Option) *Registry {
	r := &Registry{
		kv:     kv,
		ttl:    ttl,
		prefix: prefix,
		now:    time.Now,
		newID:  common.NewULID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) loginKey(handle string) string   { return r.prefix + "login:" + handle }
func (r *Registry) sessionKey(handle string) string { return r.prefix + "conv:" + handle }

// Login issues a new handle for userID.
func (r *Registry) Login(ctx context.Context, userID uint64) (*Principal, error) {
	p := &Principal{
		Handle:    uuid.NewString(),
		UserID:    userID,
		ExpiresAt: r.now().Add(r.ttl),
	}
	b, err := json.Marshal(record{UserID: p.UserID, ExpiresAt: p.ExpiresAt})
	if err != nil {
		return nil, err
	}
	if err := r.kv.Set(ctx, r.loginKey(p.Handle), string(b), r.ttl); err != nil {
		return nil, common.Storage("save login", err)
	}
	return p, nil
}

// Resolve returns the live login for handle or common.ErrNotAuthenticated.
func (r *Registry) Resolve(ctx context.Context, handle string) (*Principal, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, common.ErrNotAuthenticated
	}
	raw, err := r.kv.Get(ctx, r.loginKey(handle))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, common.ErrNotAuthenticated
		}
		return nil, common.Storage("load login", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record", common.ErrNotAuthenticated)
	}
	if !r.now().Before(rec.ExpiresAt) {
		return nil, common.ErrNotAuthenticated
	}
	return &Principal{Handle: handle, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt}, nil
}

// CreateOrGetSession returns the conversation session id of the login behind
// handle, creating it on first use. Concurrent first calls agree on one id.
func (r *Registry) CreateOrGetSession(ctx context.Context, handle string) (string, error) {
	p, err := r.Resolve(ctx, handle)
	if err != nil {
		return "", err
	}
	if id, ok, err := r.sessionID(ctx, handle); err != nil || ok {
		return id, err
	}

	id, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	remaining := p.ExpiresAt.Sub(r.now())
	if remaining <= 0 {
		return "", common.ErrNotAuthenticated
	}
	created, err := r.kv.SetNX(ctx, r.sessionKey(handle), id, remaining)
	if err != nil {
		return "", common.Storage("save session id", err)
	}
	if created {
		return id, nil
	}

	// Lost the race; use the winner's id.
	existing, ok, err := r.sessionID(ctx, handle)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", common.ErrNotAuthenticated
	}
	return existing, nil
}

// SessionID looks up the conversation session id without creating one.
func (r *Registry) SessionID(ctx context.Context, handle string) (string, bool, error) {
	if _, err := r.Resolve(ctx, handle); err != nil {
		return "", false, err
	}
	return r.sessionID(ctx, handle)
}

func (r *Registry) sessionID(ctx context.Context, handle string) (string, bool, error) {
	id, err := r.kv.Get(ctx, r.sessionKey(handle))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, common.Storage("load session id", err)
	}
	return id, true, nil
}

// Invalidate destroys the login and its session id.
func (r *Registry) Invalidate(ctx context.Context, handle string) error {
	if strings.TrimSpace(handle) == "" {
		return nil
	}
	if err := r.kv.Del(ctx, r.loginKey(handle), r.sessionKey(handle)); err != nil {
		return common.Storage("delete session", err)
	}
	return nil
}
