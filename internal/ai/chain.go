package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChainProvider talks to a conversational backend that keeps the thread on
// its side. Each request sends only the new user turn and points at the
// previous upstream turn through conversation_id and parent_message_id.
type ChainProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewChainProvider(baseURL, model string) *ChainProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ChainProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type chainContent struct {
	ContentType string   `json:"content_type"`
	Parts       []string `json:"parts"`
}

type chainAuthor struct {
	Role string `json:"role"`
}

type chainMessage struct {
	ID      string       `json:"id"`
	Author  chainAuthor  `json:"author"`
	Content chainContent `json:"content"`
}

type chainReq struct {
	Action          string         `json:"action"`
	Messages        []chainMessage `json:"messages"`
	Model           string         `json:"model"`
	ConversationID  *string        `json:"conversation_id"`
	ParentMessageID string         `json:"parent_message_id"`
}

type chainResp struct {
	Message        *chainMessage `json:"message"`
	ConversationID string        `json:"conversation_id"`
	Error          *string       `json:"error"`
}

func (p *ChainProvider) Name() string             { return "chain" }
func (p *ChainProvider) Mode() Mode               { return ModeChain }
func (p *ChainProvider) RequiresCredential() bool { return true }

func (p *ChainProvider) Chat(ctx context.Context, req Request) (*Reply, error) {
	if p.Client == nil {
		return nil, errors.New("chain: http client is nil")
	}
	if strings.TrimSpace(req.Credential) == "" {
		return nil, ErrMissingCredential
	}
	turn, ok := req.LastUserMessage()
	if !ok {
		return nil, errors.New("chain: request has no user turn")
	}

	body := chainReq{
		Action: "next",
		Messages: []chainMessage{{
			ID:      uuid.NewString(),
			Author:  chainAuthor{Role: turn.Role},
			Content: chainContent{ContentType: "text", Parts: []string{turn.Content}},
		}},
		Model:           p.Model,
		ParentMessageID: req.Linkage.ParentTurnID,
	}
	if req.Linkage.ConversationID != "" {
		c := req.Linkage.ConversationID
		body.ConversationID = &c
	}
	// A new thread still needs a parent id; upstream treats an unknown one as the root.
	if body.ParentMessageID == "" {
		body.ParentMessageID = uuid.NewString()
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/conversation", p.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("chain: %s", msg)
	}

	var decoded chainResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("chain: decode reply: %w", ErrMalformedReply)
	}
	if decoded.Error != nil && *decoded.Error != "" {
		return nil, fmt.Errorf("chain: %s", *decoded.Error)
	}
	if decoded.Message == nil || decoded.ConversationID == "" {
		return nil, fmt.Errorf("chain: %w", ErrMalformedReply)
	}

	reply := &Reply{
		Content:        strings.Join(decoded.Message.Content.Parts, ""),
		TurnID:         decoded.Message.ID,
		ConversationID: decoded.ConversationID,
	}
	if err := reply.validate(); err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}
	return reply, nil
}
