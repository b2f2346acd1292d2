// Package llm provides text generation clients for the supported model providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Generator returns raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names a generation backend.
type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderGRPC   Provider = "grpc"
)

// ErrEmptyOutput is returned when a provider answers with no text.
var ErrEmptyOutput = errors.New("provider returned no text")

// Config selects and configures a provider.
type Config struct {
	Provider      Provider
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	AgentAddr     string
}

// ParseProvider normalizes a provider name. Empty means none.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProviderNone:
		return ProviderNone, nil
	case ProviderGemini, ProviderOpenAI, ProviderGRPC:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s (supported: %s, %s, %s, %s)", s, ProviderNone, ProviderGemini, ProviderOpenAI, ProviderGRPC)
	}
}

// New builds the configured generator. It returns (nil, nil) for ProviderNone,
// in which case callers serve fallback content only. Generators that hold a
// connection also implement io.Closer.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case ProviderNone, "":
		return nil, nil
	case ProviderGemini:
		gen, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderOpenAI:
		gen, err = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	case ProviderGRPC:
		gen, err = NewGRPCClient(ctx, cfg.AgentAddr, logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Generation provider configured", "provider", cfg.Provider)
	return gen, nil
}
