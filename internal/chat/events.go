package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TurnEvent summarizes a finished turn for downstream consumers.
type TurnEvent struct {
	SessionID          string    `json:"session_id"`
	UserID             uint64    `json:"user_id"`
	State              State     `json:"state"`
	Provider           string    `json:"provider,omitempty"`
	UserMessageID      uint64    `json:"user_message_id,omitempty"`
	AssistantMessageID uint64    `json:"assistant_message_id,omitempty"`
	Retryable          bool      `json:"retryable"`
	FinishedAt         time.Time `json:"finished_at"`
}

type TurnObserver interface {
	TurnFinished(ctx context.Context, ev TurnEvent) error
}

// notify reports turns that got as far as a session; earlier rejections
// carry nothing worth publishing.
func (s *Service) notify(ctx context.Context, res *TurnResult) {
	if s.observer == nil || res.SessionID == "" {
		return
	}
	ev := TurnEvent{
		SessionID:  res.SessionID,
		UserID:     res.UserID,
		State:      res.State,
		Provider:   res.Provider,
		Retryable:  res.Retryable,
		FinishedAt: time.Now(),
	}
	if res.UserMessage != nil {
		ev.UserMessageID = res.UserMessage.ID
	}
	if res.AssistantMessage != nil {
		ev.AssistantMessageID = res.AssistantMessage.ID
	}
	if err := s.observer.TurnFinished(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", res.SessionID).Msg("publish turn event failed")
	}
}
