package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. UserID is nil for turns that no
// user authored directly.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(64);not null;index:idx_chat_msg_session" json:"session_id"`
	UserID    *uint64   `gorm:"index" json:"user_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// Linkage is the upstream thread position of a session: the provider that
// issued it, the id of the last upstream turn and the upstream conversation
// it belongs to. It is replaced wholesale on every successful upstream
// exchange; Version counts the replacements.
type Linkage struct {
	SessionID      string    `gorm:"primaryKey;type:varchar(64)" json:"session_id"`
	Provider       string    `gorm:"type:varchar(32);not null;default:''" json:"provider"`
	LastTurnID     string    `gorm:"type:varchar(128);not null" json:"last_turn_id"`
	ConversationID *string   `gorm:"type:varchar(128)" json:"conversation_id"`
	Version        uint64    `gorm:"not null;default:0" json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Linkage) TableName() string { return "chat_linkages" }

// For returns the linkage when provider issued it, and nil otherwise. Ids
// minted by one upstream mean nothing to another.
func (l *Linkage) For(provider string) *Linkage {
	if l == nil || l.Provider != provider {
		return nil
	}
	return l
}

func (l *Linkage) Conversation() string {
	if l == nil || l.ConversationID == nil {
		return ""
	}
	return *l.ConversationID
}

func (l *Linkage) LastTurn() string {
	if l == nil {
		return ""
	}
	return l.LastTurnID
}
