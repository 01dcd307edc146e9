package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/gopherchat/internal/ai"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
	"github.com/suPer8Hu/gopherchat/internal/session"
	"golang.org/x/text/language"
)

// Sessions is the part of the session registry a turn needs.
type Sessions interface {
	Resolve(ctx context.Context, handle string) (*session.Principal, error)
	CreateOrGetSession(ctx context.Context, handle string) (string, error)
	SessionID(ctx context.Context, handle string) (string, bool, error)
}

// Credentials returns the upstream credential a user stored, or "".
type Credentials interface {
	Credential(ctx context.Context, userID uint64) (string, error)
}

type Options struct {
	Provider string
	Model    string
	// ServerCredential is used when the user has no access token of their own.
	ServerCredential  string
	ContextWindowSize int
	UpstreamTimeout   time.Duration
}

type Service struct {
	store       Store
	sessions    Sessions
	credentials Credentials
	registry    *ai.Registry
	observer    TurnObserver
	opts        Options
}

func NewService(store Store, sessions Sessions, credentials Credentials, registry *ai.Registry, opts Options) *Service {
	if opts.ContextWindowSize <= 0 || opts.ContextWindowSize > 100 {
		opts.ContextWindowSize = 20
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 60 * time.Second
	}
	return &Service{
		store:       store,
		sessions:    sessions,
		credentials: credentials,
		registry:    registry,
		opts:        opts,
	}
}

// SetObserver registers a listener for finished turns.
func (s *Service) SetObserver(o TurnObserver) {
	s.observer = o
}

type TurnRequest struct {
	Handle  string
	Message string
	Lang    language.Tag
}

type TurnResult struct {
	State     State
	SessionID string
	UserID    uint64
	Provider  string
	// Content is the assistant reply, or the fallback text after an upstream failure.
	Content          string
	UserMessage      *Message
	AssistantMessage *Message
	Retryable        bool
}

// Send runs one chat turn. The returned error wraps one of
// common.ErrNotAuthenticated, common.ErrValidation, common.ErrUpstreamFailure or
// common.ErrStorageUnavailable. The result is never nil.
func (s *Service) Send(ctx context.Context, in TurnRequest) (*TurnResult, error) {
	fsm := newTurnMachine()
	res := &TurnResult{}

	err := s.run(ctx, fsm, in, res)
	res.State = currentState(fsm)
	if err == nil && res.State != StateResponded {
		err = fmt.Errorf("chat turn stopped in state %s", res.State)
	}

	s.notify(ctx, res)
	return res, err
}

func (s *Service) run(ctx context.Context, fsm *stateless.StateMachine, in TurnRequest, res *TurnResult) error {
	log := zerolog.Ctx(ctx)

	principal, err := s.sessions.Resolve(ctx, in.Handle)
	if err != nil {
		if errors.Is(err, common.ErrNotAuthenticated) {
			return fire(ctx, fsm, triggerReject, err)
		}
		return fire(ctx, fsm, triggerStorageFail, err)
	}
	res.UserID = principal.UserID
	if err := fire(ctx, fsm, triggerAuthenticate, nil); err != nil {
		return err
	}

	if strings.TrimSpace(in.Message) == "" {
		return fire(ctx, fsm, triggerInvalid, fmt.Errorf("%w: message is required", common.ErrValidation))
	}

	sessionID, err := s.sessions.CreateOrGetSession(ctx, in.Handle)
	if err != nil {
		if errors.Is(err, common.ErrNotAuthenticated) {
			return fire(ctx, fsm, triggerReject, err)
		}
		return fire(ctx, fsm, triggerStorageFail, err)
	}
	res.SessionID = sessionID

	uid := principal.UserID
	userMsg, err := s.store.Append(ctx, sessionID, RoleUser, in.Message, &uid)
	if err != nil {
		return fire(ctx, fsm, triggerStorageFail, err)
	}
	res.UserMessage = userMsg
	if err := fire(ctx, fsm, triggerRecordUser, nil); err != nil {
		return err
	}

	linkage, err := s.store.GetLinkage(ctx, sessionID)
	if err != nil {
		return fire(ctx, fsm, triggerStorageFail, err)
	}
	if err := fire(ctx, fsm, triggerPrepareLinkage, nil); err != nil {
		return err
	}

	provider, credential, err := s.pickProvider(ctx, uid, in.Lang)
	if err != nil {
		if errors.Is(err, common.ErrStorageUnavailable) {
			return fire(ctx, fsm, triggerStorageFail, err)
		}
		return s.upstreamFailed(ctx, fsm, in, res, err)
	}
	res.Provider = provider.Name()

	req, err := s.buildRequest(ctx, provider, sessionID, userMsg, linkage, credential)
	if err != nil {
		return fire(ctx, fsm, triggerStorageFail, err)
	}
	if err := fire(ctx, fsm, triggerDispatch, nil); err != nil {
		return err
	}

	reply, err := s.dispatch(ctx, provider, req)
	if err != nil {
		return s.upstreamFailed(ctx, fsm, in, res, err)
	}

	assistantMsg, err := s.store.Append(ctx, sessionID, RoleAssistant, reply.Content, &uid)
	if err != nil {
		return fire(ctx, fsm, triggerStorageFail, err)
	}
	res.AssistantMessage = assistantMsg

	// Local replies never reached an upstream, so they leave the linkage alone.
	if _, local := provider.(localResponder); !local {
		if _, err := s.store.UpdateLinkage(ctx, sessionID, provider.Name(), reply.TurnID, reply.ConversationID); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("assistant turn recorded but linkage update failed")
			return fire(ctx, fsm, triggerStorageFail, err)
		}
	}
	if err := fire(ctx, fsm, triggerRecordAssistant, nil); err != nil {
		return err
	}

	res.Content = reply.Content
	return fire(ctx, fsm, triggerRespond, nil)
}

// pickProvider returns the configured provider, or the local responder when
// that provider needs a credential and none is available.
func (s *Service) pickProvider(ctx context.Context, userID uint64, lang language.Tag) (ai.Provider, string, error) {
	provider, err := s.registry.Get(ctx, s.opts.Provider, s.opts.Model)
	if err != nil {
		return nil, "", err
	}
	if !provider.RequiresCredential() {
		return provider, "", nil
	}

	credential := ""
	if s.credentials != nil {
		credential, err = s.credentials.Credential(ctx, userID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, "", err
		}
	}
	if credential == "" {
		credential = s.opts.ServerCredential
	}
	if credential == "" {
		return localResponder{lang: lang}, "", nil
	}
	return provider, credential, nil
}

func (s *Service) buildRequest(ctx context.Context, provider ai.Provider, sessionID string, userMsg *Message, linkage *Linkage, credential string) (ai.Request, error) {
	linkage = linkage.For(provider.Name())
	req := ai.Request{
		Linkage: ai.Linkage{
			ConversationID: linkage.Conversation(),
			ParentTurnID:   linkage.LastTurn(),
		},
		Credential: credential,
		SessionID:  sessionID,
	}

	if provider.Mode() == ai.ModeChain {
		req.Messages = []ai.Message{{Role: userMsg.Role, Content: userMsg.Content}}
		return req, nil
	}

	recent, err := s.store.ListRecentBySession(ctx, sessionID, s.opts.ContextWindowSize)
	if err != nil {
		return ai.Request{}, err
	}
	req.Messages = make([]ai.Message, 0, len(recent))
	for _, m := range recent {
		req.Messages = append(req.Messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	return req, nil
}

func (s *Service) dispatch(ctx context.Context, provider ai.Provider, req ai.Request) (*ai.Reply, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.UpstreamTimeout)
	defer cancel()

	reply, err := provider.Chat(cctx, req)
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.Content == "" || reply.TurnID == "" {
		return nil, ai.ErrMalformedReply
	}
	return reply, nil
}

// upstreamFailed keeps the recorded user turn, leaves the linkage alone and
// answers with the localized fallback text.
func (s *Service) upstreamFailed(ctx context.Context, fsm *stateless.StateMachine, in TurnRequest, res *TurnResult, cause error) error {
	zerolog.Ctx(ctx).Warn().
		Err(cause).
		Str("session_id", res.SessionID).
		Str("provider", res.Provider).
		Bool("timeout", errors.Is(cause, context.DeadlineExceeded)).
		Msg("upstream call failed")

	res.Content = i18n.Text(in.Lang, i18n.UpstreamFailure)
	res.Retryable = true
	return fire(ctx, fsm, triggerUpstreamFail, fmt.Errorf("%w: %v", common.ErrUpstreamFailure, cause))
}

// History returns the messages of the caller's current session, oldest first.
// A login that never chatted has an empty history.
func (s *Service) History(ctx context.Context, handle string) ([]Message, error) {
	sessionID, ok, err := s.sessions.SessionID(ctx, handle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Message{}, nil
	}
	return s.store.ListBySession(ctx, sessionID)
}
