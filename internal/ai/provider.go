package ai

import (
	"context"
	"errors"
)

// Mode tells the orchestrator what context a provider needs.
type Mode string

const (
	// ModeReplay providers are stateless: every request carries the recent history.
	ModeReplay Mode = "replay"
	// ModeChain providers keep the thread upstream: a request carries only the
	// new turn plus the linkage ids returned by the previous reply.
	ModeChain Mode = "chain"
)

var (
	ErrMalformedReply    = errors.New("ai: malformed reply")
	ErrMissingCredential = errors.New("ai: credential required")
)

type Message struct {
	Role    string
	Content string
}

// Linkage identifies the upstream thread position a request continues from.
type Linkage struct {
	ConversationID string
	ParentTurnID   string
}

type Request struct {
	// Messages is oldest first and ends with the new user turn.
	Messages   []Message
	Linkage    Linkage
	Credential string
	// SessionID is the local conversation id, used by providers with no upstream thread.
	SessionID string
}

func (r Request) LastUserMessage() (Message, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i], true
		}
	}
	return Message{}, false
}

type Reply struct {
	Content        string
	TurnID         string
	ConversationID string
}

func (r *Reply) validate() error {
	if r == nil || r.Content == "" || r.TurnID == "" {
		return ErrMalformedReply
	}
	return nil
}

type Provider interface {
	Name() string
	Mode() Mode
	RequiresCredential() bool
	Chat(ctx context.Context, req Request) (*Reply, error)
}
