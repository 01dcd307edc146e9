package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Chat     ChatConfig     `mapstructure:"chat"`
	AI       AIConfig       `mapstructure:"ai"`
	Rabbit   RabbitConfig   `mapstructure:"rabbit"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the backend for users, messages and linkage: "memory" or "sql".
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite".
	Driver string `mapstructure:"driver"`
	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/gopherchat?charset=utf8mb4&parseTime=true&loc=Local
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `mapstructure:"backend"`
	CookieName string        `mapstructure:"cookie_name"`
	Secret     string        `mapstructure:"secret"`
	TTL        time.Duration `mapstructure:"ttl"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

type ChatConfig struct {
	ContextWindowSize int           `mapstructure:"context_window_size"`
	UpstreamTimeout   time.Duration `mapstructure:"upstream_timeout"`
}

type AIConfig struct {
	Provider     string       `mapstructure:"provider"`
	Model        string       `mapstructure:"model"`
	SystemPrompt string       `mapstructure:"system_prompt"`
	OpenAI       OpenAIConfig `mapstructure:"openai"`
	Chain        ChainConfig  `mapstructure:"chain"`
	Ollama       OllamaConfig `mapstructure:"ollama"`
}

type OpenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type ChainConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// RabbitConfig enables turn events when URL is set.
type RabbitConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads defaults, then the optional YAML file at CONFIG_PATH, then the environment.
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind env vars: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.backend", "memory")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "app:apppass@tcp(127.0.0.1:3306)/gopherchat?charset=utf8mb4&parseTime=true&loc=Local")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.cookie_name", "gopherchat.sid")
	v.SetDefault("session.secret", "dev-secret-change-me")
	v.SetDefault("session.ttl", "720h") // 30 days
	v.SetDefault("session.key_prefix", "gopherchat:session:")

	v.SetDefault("chat.context_window_size", 20)
	v.SetDefault("chat.upstream_timeout", "60s")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o")
	v.SetDefault("ai.openai.temperature", 0.7)
	v.SetDefault("ai.openai.max_tokens", 1000)
	v.SetDefault("ai.chain.base_url", "https://chat.openai.com/backend-api")
	v.SetDefault("ai.chain.model", "gpt-4o-mini")
	v.SetDefault("ai.ollama.base_url", "http://localhost:11434")
	v.SetDefault("ai.ollama.model", "llama3:latest")

	v.SetDefault("rabbit.queue", "chat_turns")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// bindEnvVars keeps the short variable names used by existing deployments.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"env":                      {"ENV", "NODE_ENV"},
		"server.addr":              {"HTTP_ADDR"},
		"storage.backend":          {"STORAGE_BACKEND"},
		"database.driver":          {"DB_DRIVER"},
		"database.dsn":             {"DB_DSN", "DATABASE_URL"},
		"redis.addr":               {"REDIS_ADDR"},
		"redis.password":           {"REDIS_PASSWORD"},
		"redis.db":                 {"REDIS_DB"},
		"session.backend":          {"SESSION_BACKEND"},
		"session.secret":           {"SESSION_SECRET", "JWT_SECRET"},
		"chat.context_window_size": {"CHAT_CONTEXT_WINDOW_SIZE"},
		"chat.upstream_timeout":    {"CHAT_UPSTREAM_TIMEOUT"},
		"ai.provider":              {"AI_PROVIDER"},
		"ai.model":                 {"AI_MODEL"},
		"ai.openai.api_key":        {"OPENAI_API_KEY"},
		"ai.openai.base_url":       {"OPENAI_BASE_URL"},
		"ai.chain.api_key":         {"CHAIN_API_KEY"},
		"ai.chain.base_url":        {"CHAIN_BASE_URL"},
		"ai.ollama.base_url":       {"OLLAMA_BASE_URL"},
		"ai.ollama.model":          {"OLLAMA_MODEL"},
		"rabbit.url":               {"RABBIT_URL"},
		"rabbit.queue":             {"RABBIT_QUEUE"},
		"logging.level":            {"LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "sql":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.IsProduction() && c.Session.Secret == "dev-secret-change-me" {
		return errors.New("SESSION_SECRET must be set in production")
	}
	return nil
}
