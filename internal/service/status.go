package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"carefinder/internal/model"
)

type breakerStater interface {
	State() string
}

// StatusProbe reports whether the completion service is reachable and serves the configured model
type StatusProbe struct {
	client  CompletionClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewStatusProbe creates a probe bounded by timeout
func NewStatusProbe(client CompletionClient, timeout time.Duration, logger *zap.Logger) *StatusProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusProbe{client: client, timeout: timeout, logger: logger}
}

// Probe never fails; any error reports the service offline with no models
func (s *StatusProbe) Probe(ctx context.Context) model.StatusResponse {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	status := model.StatusResponse{
		Status:       "offline",
		Models:       []string{},
		CurrentModel: s.client.Model(),
	}
	if b, ok := s.client.(breakerStater); ok {
		status.BreakerState = b.State()
	}

	models, err := s.client.ListModels(ctx)
	if err != nil {
		s.logger.Warn("completion status probe failed",
			zap.String("provider", s.client.Provider()),
			zap.Error(err),
		)
		return status
	}

	status.Status = "online"
	status.Available = true
	if models != nil {
		status.Models = models
	}
	status.ModelAvailable = modelListed(models, s.client.Model())
	return status
}

// modelListed matches case-insensitively by substring so "qwen2.5" finds "Qwen2.5:latest"
func modelListed(models []string, target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return false
	}
	for _, m := range models {
		if strings.Contains(strings.ToLower(m), t) {
			return true
		}
	}
	return false
}
