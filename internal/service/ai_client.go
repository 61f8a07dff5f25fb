package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carefinder/internal/config"
	"carefinder/internal/metrics"
)

// CompletionClient is the interface for text-completion providers
type CompletionClient interface {
	// Generate sends one non-streaming completion request and returns the raw model text
	Generate(ctx context.Context, system, prompt string) (string, error)

	// ListModels returns the model names the service advertises
	ListModels(ctx context.Context) ([]string, error)

	// Provider returns the provider name used in logs and metrics
	Provider() string

	// Model returns the configured model name
	Model() string
}

// NewCompletionClient builds the configured provider, wrapped in a circuit breaker when enabled
func NewCompletionClient(cfg config.CompletionConfig, m *metrics.Metrics, logger *zap.Logger) (CompletionClient, error) {
	var client CompletionClient
	switch cfg.Provider {
	case config.ProviderOllama:
		client = NewOllamaClient(cfg)
	case config.ProviderOpenAI:
		client = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}

	client = &instrumentedClient{CompletionClient: client, metrics: m}

	if cfg.BreakerEnabled {
		client = NewBreakerClient(client, cfg, logger)
	}
	return client, nil
}

// instrumentedClient records call counts and latency per provider
type instrumentedClient struct {
	CompletionClient
	metrics *metrics.Metrics
}

func (c *instrumentedClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	text, err := c.CompletionClient.Generate(ctx, system, prompt)

	status := "ok"
	if err != nil {
		status = string(classifyCompletionError("generate", err).Kind)
	}
	c.metrics.RecordCompletion(c.Provider(), status, time.Since(start))
	return text, err
}
