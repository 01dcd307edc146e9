package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
// It is stateless upstream, so every request replays the recent history.
type OpenAIProvider struct {
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	HTTPClient   *http.Client
}

func NewOpenAIProvider(baseURL, model string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{
		BaseURL:     baseURL,
		Model:       model,
		Temperature: 0.7,
		MaxTokens:   1000,
	}
}

func (p *OpenAIProvider) Name() string             { return "openai" }
func (p *OpenAIProvider) Mode() Mode               { return ModeReplay }
func (p *OpenAIProvider) RequiresCredential() bool { return true }

func (p *OpenAIProvider) client(credential string) *openai.Client {
	cfg := openai.DefaultConfig(credential)
	if p.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(p.BaseURL, "/")
	}
	if p.HTTPClient != nil {
		cfg.HTTPClient = p.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (*Reply, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return nil, ErrMissingCredential
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if p.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client(req.Credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices: %w", ErrMalformedReply)
	}

	conversationID := req.Linkage.ConversationID
	if conversationID == "" {
		conversationID = req.SessionID
	}
	reply := &Reply{
		Content:        resp.Choices[0].Message.Content,
		TurnID:         resp.ID,
		ConversationID: conversationID,
	}
	if err := reply.validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return reply, nil
}
