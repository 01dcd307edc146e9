// Package memory is the volatile backend: everything lives for the process
// lifetime only. It satisfies the same contracts as the gorm backend.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/suPer8Hu/gopherchat/internal/chat"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/models"
	"github.com/suPer8Hu/gopherchat/internal/users"
)

var (
	_ chat.Store  = (*Store)(nil)
	_ users.Store = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	users      map[uint64]models.User
	byUsername map[string]uint64
	nextUserID uint64

	messages      map[string][]chat.Message
	nextMessageID uint64
	lastCreated   time.Time

	linkages map[string]chat.Linkage

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:      make(map[uint64]models.User),
		byUsername: make(map[string]uint64),
		messages:   make(map[string][]chat.Message),
		linkages:   make(map[string]chat.Linkage),
		now:        time.Now,
	}
}

// stamp returns a creation time strictly after the previous one. Caller holds mu.
func (s *Store) stamp() time.Time {
	t := s.now()
	if !t.After(s.lastCreated) {
		t = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = t
	return t
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[u.Username]; taken {
		return fmt.Errorf("username %q: %w", u.Username, common.ErrConflict)
	}
	s.nextUserID++
	now := s.now()
	u.ID = s.nextUserID
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = cloneUser(*u)
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id uint64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return nil, common.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) UpdateAccessToken(_ context.Context, id uint64, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u.AccessToken = &token
	u.UpdatedAt = s.now()
	s.users[id] = u
	out := cloneUser(u)
	return &out, nil
}

func (s *Store) Append(_ context.Context, sessionID, role, content string, userID *uint64) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	m := chat.Message{
		ID:        s.nextMessageID,
		SessionID: sessionID,
		UserID:    cloneID(userID),
		Role:      role,
		Content:   content,
		CreatedAt: s.stamp(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], m)
	out := m
	out.UserID = cloneID(m.UserID)
	return &out, nil
}

func (s *Store) ListBySession(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages[sessionID]), nil
}

func (s *Store) ListRecentBySession(_ context.Context, sessionID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return cloneMessages(msgs), nil
}

func (s *Store) GetLinkage(_ context.Context, sessionID string) (*chat.Linkage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.linkages[sessionID]
	if !ok {
		return nil, nil
	}
	out := cloneLinkage(l)
	return &out, nil
}

func (s *Store) UpdateLinkage(_ context.Context, sessionID, provider, turnID, conversationID string) (*chat.Linkage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.linkages[sessionID]
	l := chat.Linkage{
		SessionID:  sessionID,
		Provider:   provider,
		LastTurnID: turnID,
		Version:    prev.Version + 1,
		UpdatedAt:  s.now(),
	}
	if conversationID != "" {
		l.ConversationID = &conversationID
	}
	s.linkages[sessionID] = l
	out := cloneLinkage(l)
	return &out, nil
}

// Ping always succeeds; it lets the health check treat both backends alike.
func (s *Store) Ping(context.Context) error { return nil }

func cloneUser(u models.User) models.User {
	if u.AccessToken != nil {
		tok := *u.AccessToken
		u.AccessToken = &tok
	}
	return u
}

func cloneID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneMessages(in []chat.Message) []chat.Message {
	out := make([]chat.Message, len(in))
	for i, m := range in {
		m.UserID = cloneID(m.UserID)
		out[i] = m
	}
	return out
}

func cloneLinkage(l chat.Linkage) chat.Linkage {
	if l.ConversationID != nil {
		c := *l.ConversationID
		l.ConversationID = &c
	}
	return l
}
