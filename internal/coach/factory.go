package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/resilience"
)

// NewFromConfig builds the coach described by cfg. When coaching is disabled
// the returned Coach reports Enabled() == false.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) (*Coach, error) {
	opts := []Option{
		WithLogger(logger.With().Str("component", "coach").Logger()),
		WithTimeout(cfg.CoachTimeoutDuration()),
		WithCircuitBreaker(resilience.NewCircuitBreaker("coach", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerReset())),
		WithRetry(&resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    cfg.RetryBackoff(),
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		}),
	}
	if !cfg.CoachEnabled {
		return New(nil, opts...), nil
	}

	var (
		backend Backend
		err     error
	)
	if strings.EqualFold(cfg.CoachProvider, ProviderOpenAINative) {
		backend, err = NewOpenAIBackend(cfg.CoachAPIKey, cfg.CoachModel, cfg.CoachBaseURL)
	} else {
		backend, err = NewAnyLLMBackend(cfg.CoachProvider, cfg.CoachModel, cfg.CoachAPIKey, cfg.CoachBaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("coach backend: %w", err)
	}
	return New(backend, opts...), nil
}
