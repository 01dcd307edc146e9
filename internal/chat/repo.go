package chat

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/gopherchat/internal/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is the durable Store backed by gorm.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Append(ctx context.Context, sessionID, role, content string, userID *uint64) (*Message, error) {
	m := &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, common.Storage("insert message", err)
	}
	return m, nil
}

func (r *Repo) ListBySession(ctx context.Context, sessionID string) ([]Message, error) {
	msgs := []Message{}
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, common.Storage("list messages", err)
	}
	return msgs, nil
}

func (r *Repo) ListRecentBySession(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var desc []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&desc).Error; err != nil {
		return nil, common.Storage("list recent messages", err)
	}

	// reverse to ASC (oldest -> newest)
	out := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, desc[i])
	}
	return out, nil
}

func (r *Repo) GetLinkage(ctx context.Context, sessionID string) (*Linkage, error) {
	var l Linkage
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, common.Storage("load linkage", err)
	}
	return &l, nil
}

// UpdateLinkage upserts the session's linkage in one statement.
func (r *Repo) UpdateLinkage(ctx context.Context, sessionID, provider, turnID, conversationID string) (*Linkage, error) {
	now := time.Now()
	l := &Linkage{
		SessionID:      sessionID,
		Provider:       provider,
		LastTurnID:     turnID,
		ConversationID: nullable(conversationID),
		Version:        1,
		UpdatedAt:      now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"provider":        l.Provider,
			"last_turn_id":    l.LastTurnID,
			"conversation_id": l.ConversationID,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		}),
	}).Create(l).Error
	if err != nil {
		return nil, common.Storage("save linkage", err)
	}
	return r.GetLinkage(ctx, sessionID)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
