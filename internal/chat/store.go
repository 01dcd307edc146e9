package chat

import "context"

// MessageLog is the append-only, per-session ordered log of turns.
// Ids are assigned by the backend, atomically and in increasing order.
type MessageLog interface {
	Append(ctx context.Context, sessionID, role, content string, userID *uint64) (*Message, error)
	// ListBySession returns every message of the session, oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]Message, error)
	// ListRecentBySession returns the newest limit messages, oldest first.
	ListRecentBySession(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

// LinkageTracker keeps the latest upstream linkage per session.
type LinkageTracker interface {
	// GetLinkage returns nil when the session had no upstream exchange yet.
	GetLinkage(ctx context.Context, sessionID string) (*Linkage, error)
	// UpdateLinkage replaces the linkage with ids issued by provider.
	UpdateLinkage(ctx context.Context, sessionID, provider, turnID, conversationID string) (*Linkage, error)
}

type Store interface {
	MessageLog
	LinkageTracker
}
