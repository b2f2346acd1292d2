// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/goalpath/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	LogLevel    slog.Level
	Provider    ProviderConfig
	Tutor       TutorConfig
	RateLimit   RateLimitConfig
	Auth        AuthConfig
	Cache       CacheConfig
}

// ProviderConfig selects the text generation backend.
type ProviderConfig struct {
	Name          llm.Provider
	Timeout       time.Duration
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	AgentAddr     string // gRPC sidecar, used when Name is "grpc"
}

// TutorConfig controls realtime tutor sessions.
type TutorConfig struct {
	HelpDelayMin time.Duration
	HelpDelayMax time.Duration
	IdleTTL      time.Duration
	ReapInterval time.Duration
}

// RateLimitConfig bounds roadmap generation per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CacheConfig configures the roadmap cache. An empty RedisURL selects the
// in-process cache.
type CacheConfig struct {
	RedisURL   string
	RoadmapTTL time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider, err := llm.ParseProvider(getEnv("LLM_PROVIDER", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/goalpath.db"),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		Provider: ProviderConfig{
			Name:          provider,
			Timeout:       getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", llm.DefaultGeminiModel),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", llm.DefaultOpenAIModel),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			AgentAddr:     getEnv("AGENT_ADDR", "localhost:50051"),
		},
		Tutor: TutorConfig{
			HelpDelayMin: getEnvDuration("HELP_DELAY_MIN", 500*time.Millisecond),
			HelpDelayMax: getEnvDuration("HELP_DELAY_MAX", 1500*time.Millisecond),
			IdleTTL:      getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			ReapInterval: getEnvDuration("SESSION_REAP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
		},
		Cache: CacheConfig{
			RedisURL:   getEnv("REDIS_URL", ""),
			RoadmapTTL: getEnvDuration("ROADMAP_CACHE_TTL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be > 0")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be > 0")
	}
	switch c.Provider.Name {
	case llm.ProviderGemini:
		if c.Provider.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case llm.ProviderOpenAI:
		if c.Provider.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case llm.ProviderGRPC:
		if c.Provider.AgentAddr == "" {
			return fmt.Errorf("AGENT_ADDR is required when LLM_PROVIDER=grpc")
		}
	}
	if c.Tutor.HelpDelayMin < 0 || c.Tutor.HelpDelayMax < c.Tutor.HelpDelayMin {
		return fmt.Errorf("HELP_DELAY_MIN must be >= 0 and <= HELP_DELAY_MAX")
	}
	if c.Tutor.IdleTTL <= 0 || c.Tutor.ReapInterval <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL and SESSION_REAP_INTERVAL must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// LLM returns the provider settings in the form llm.New expects.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider:      c.Provider.Name,
		GeminiAPIKey:  c.Provider.GeminiAPIKey,
		GeminiModel:   c.Provider.GeminiModel,
		OpenAIAPIKey:  c.Provider.OpenAIAPIKey,
		OpenAIModel:   c.Provider.OpenAIModel,
		OpenAIBaseURL: c.Provider.OpenAIBaseURL,
		AgentAddr:     c.Provider.AgentAddr,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
