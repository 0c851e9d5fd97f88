package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anchormap/anchormap/config"
)

// Embedding providers supported by the factory.
const (
	OpenAI = "openai"
	Google = "google"
)

// maxEmbedChars bounds the text sent to an embedding endpoint. Inputs
// over the model limit are truncated rather than rejected.
const maxEmbedChars = 20000

// EmbeddingProvider converts texts into fixed-length vectors.
// Implementations are deterministic for identical input and model
// version; callers must re-embed after a model change.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// ChatProvider produces a completion for a system/user prompt pair.
type ChatProvider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewEmbeddingProvider creates an embedding client based on the
// configured provider name.
func NewEmbeddingProvider(cfg config.EmbeddingConfig, retry config.RetryConfig, timeout time.Duration) (EmbeddingProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key for embedding provider %q not set", cfg.Provider)
	}
	httpClient := NewHTTPClient(timeout, retry.MaxRetries, retry.Backoff)
	switch cfg.Provider {
	case OpenAI:
		return newOpenAIEmbedder(cfg, httpClient), nil
	case Google:
		return newGoogleEmbedder(cfg, httpClient), nil
	default:
		return nil, errors.New("unsupported embedding provider: " + cfg.Provider)
	}
}

// NewChatProvider creates the generation client. Only OpenAI chat
// completions are supported, matching the gpt-4o default.
func NewChatProvider(cfg config.GenerationConfig, retry config.RetryConfig, timeout time.Duration) (ChatProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set for generation")
	}
	httpClient := NewHTTPClient(timeout, retry.MaxRetries, retry.Backoff)
	return newOpenAIChat(cfg, httpClient), nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
