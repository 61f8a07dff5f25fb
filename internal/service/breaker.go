package service

import (
	"context"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"carefinder/internal/config"
)

// BreakerClient short-circuits Generate calls while the completion service keeps failing.
// It never retries. ListModels bypasses the breaker so the status probe sees the real service.
type BreakerClient struct {
	CompletionClient
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerClient wraps inner with a process-wide circuit breaker
func NewBreakerClient(inner CompletionClient, cfg config.CompletionConfig, logger *zap.Logger) *BreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "completion-" + inner.Provider(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return !countsAsBreakerFailure(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerClient{
		CompletionClient: inner,
		breaker:          gobreaker.NewCircuitBreaker[string](settings),
	}
}

func (c *BreakerClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	return c.breaker.Execute(func() (string, error) {
		return c.CompletionClient.Generate(ctx, system, prompt)
	})
}

// State reports the breaker state; StatusProbe includes it in the status response
func (c *BreakerClient) State() string {
	return c.breaker.State().String()
}
