package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/gopherchat/internal/ai"
	"github.com/suPer8Hu/gopherchat/internal/auth"
	"github.com/suPer8Hu/gopherchat/internal/chat"
	"github.com/suPer8Hu/gopherchat/internal/config"
	"github.com/suPer8Hu/gopherchat/internal/db"
	"github.com/suPer8Hu/gopherchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/gopherchat/internal/session"
	"github.com/suPer8Hu/gopherchat/internal/store/memory"
	"github.com/suPer8Hu/gopherchat/internal/store/rabbitmq"
	"github.com/suPer8Hu/gopherchat/internal/store/redisstore"
	"github.com/suPer8Hu/gopherchat/internal/users"
	"gorm.io/gorm"
)

type app struct {
	handler *handlers.Handler
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type backends struct {
	chat  chat.Store
	users users.Store
	ping  handlers.Pinger
}

func build(cfg *config.Config) (*app, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	a := &app{}

	stores, err := a.openStorage(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	kv, kvPing, err := a.openSessionKV(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	sessions := session.NewRegistry(kv, cfg.Session.TTL, cfg.Session.KeyPrefix)

	userSvc := users.NewService(stores.users, auth.NewBcryptHasher())

	reg := providerRegistry(cfg)
	if !reg.Has(cfg.AI.Provider) {
		a.close()
		return nil, fmt.Errorf("unknown ai provider %q, have %v", cfg.AI.Provider, reg.Names())
	}
	chatSvc := chat.NewService(stores.chat, sessions, userSvc, reg, chat.Options{
		Provider:          cfg.AI.Provider,
		Model:             cfg.AI.Model,
		ServerCredential:  serverCredential(cfg),
		ContextWindowSize: cfg.Chat.ContextWindowSize,
		UpstreamTimeout:   cfg.Chat.UpstreamTimeout,
	})

	if cfg.Rabbit.URL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("rabbit: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		chatSvc.SetObserver(pub)
		log.Info().Str("queue", cfg.Rabbit.Queue).Msg("turn events enabled")
	}

	a.handler = &handlers.Handler{
		Users:    userSvc,
		Sessions: sessions,
		Chat:     chatSvc,
		Tokens:   auth.NewSessionTokens(cfg.Session.Secret, "gopherchat"),
		Cookie: handlers.CookieSettings{
			Name:   cfg.Session.CookieName,
			Secure: cfg.IsProduction(),
		},
		Checks: map[string]handlers.Pinger{
			"storage":  stores.ping,
			"sessions": kvPing,
		},
	}
	return a, nil
}

func (a *app) openStorage(cfg *config.Config) (*backends, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "sql":
		gdb, err := db.Connect(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		if err := db.Migrate(gdb); err != nil {
			return nil, err
		}
		return &backends{
			chat:  chat.NewRepo(gdb),
			users: users.NewRepo(gdb),
			ping:  sqlPinger(gdb),
		}, nil
	default:
		mem := memory.NewStore()
		return &backends{chat: mem, users: mem, ping: mem}, nil
	}
}

func sqlPinger(gdb *gorm.DB) handlers.Pinger {
	return pingFunc(func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

func (a *app) openSessionKV(cfg *config.Config) (session.KV, handlers.Pinger, error) {
	switch strings.ToLower(cfg.Session.Backend) {
	case "redis":
		rds, err := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, rds.Close)
		return rds, rds, nil
	default:
		kv := memory.NewKV()
		return kv, kv, nil
	}
}

// providerRegistry registers every upstream; ai.provider picks one per turn.
func providerRegistry(cfg *config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.AI.OpenAI.Model
		}
		p := ai.NewOpenAIProvider(cfg.AI.OpenAI.BaseURL, m)
		p.SystemPrompt = cfg.AI.SystemPrompt
		if cfg.AI.OpenAI.Temperature > 0 {
			p.Temperature = cfg.AI.OpenAI.Temperature
		}
		if cfg.AI.OpenAI.MaxTokens > 0 {
			p.MaxTokens = cfg.AI.OpenAI.MaxTokens
		}
		return p, nil
	})

	reg.Register("chain", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.AI.Chain.Model
		}
		return ai.NewChainProvider(cfg.AI.Chain.BaseURL, m), nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.AI.Ollama.Model
		}
		p := ai.NewOllamaProvider(cfg.AI.Ollama.BaseURL, m)
		p.SystemPrompt = cfg.AI.SystemPrompt
		return p, nil
	})

	return reg
}

func serverCredential(cfg *config.Config) string {
	switch strings.ToLower(cfg.AI.Provider) {
	case "openai":
		return cfg.AI.OpenAI.APIKey
	case "chain":
		return cfg.AI.Chain.APIKey
	}
	return ""
}
