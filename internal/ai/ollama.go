package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/gopherchat/internal/common"
)

// OllamaProvider talks to a local Ollama server. It needs no credential and
// returns no turn ids, so ids are minted locally.
type OllamaProvider struct {
	BaseURL      string
	Model        string
	SystemPrompt string
	Client       *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Name() string             { return "ollama" }
func (p *OllamaProvider) Mode() Mode               { return ModeReplay }
func (p *OllamaProvider) RequiresCredential() bool { return false }

func (p *OllamaProvider) Chat(ctx context.Context, req Request) (*Reply, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}

	msgs := make([]ollamaMsg, 0, len(req.Messages)+1)
	if p.SystemPrompt != "" {
		msgs = append(msgs, ollamaMsg{Role: "system", Content: p.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMsg{Role: m.Role, Content: m.Content})
	}

	b, err := json.Marshal(ollamaChatReq{Model: p.Model, Messages: msgs, Stream: false})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama: decode reply: %w", ErrMalformedReply)
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}

	turnID, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conversationID := req.Linkage.ConversationID
	if conversationID == "" {
		conversationID = req.SessionID
	}
	reply := &Reply{Content: decoded.Message.Content, TurnID: turnID, ConversationID: conversationID}
	if err := reply.validate(); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return reply, nil
}
