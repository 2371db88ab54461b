// Package coach runs the post-session deep critique against a language model.
package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/echomind/coach-gateway/internal/resilience"
	"github.com/echomind/coach-gateway/internal/session"
)

// ErrDisabled is returned by a coach that was configured off.
var ErrDisabled = errors.New("deep coaching is disabled")

// Backend sends one system+user prompt pair to a model and returns the raw
// answer text.
type Backend interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Coach produces a Critique for a finished session.
type Coach struct {
	backend Backend
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Coach.
type Option func(*Coach)

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Coach) { c.breaker = cb }
}

// WithRetry replaces the default retry policy.
func WithRetry(cfg *resilience.RetryConfig) Option {
	return func(c *Coach) { c.retry = cfg }
}

// WithTimeout bounds a whole Analyze call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Coach) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coach) { c.logger = logger }
}

// New creates a Coach over backend. A nil backend yields a disabled coach.
func New(backend Backend, opts ...Option) *Coach {
	c := &Coach{
		backend: backend,
		retry:   resilience.DefaultRetryConfig(),
		timeout: 60 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker("coach", 5, 30*time.Second)
	}
	return c
}

// Enabled reports whether Analyze will contact a model.
func (c *Coach) Enabled() bool {
	return c != nil && c.backend != nil
}

// Backend returns the configured backend name, or "disabled".
func (c *Coach) Backend() string {
	if !c.Enabled() {
		return "disabled"
	}
	return c.backend.Name()
}

// Ready reports an error while the backend's circuit is open. A disabled
// coach is always ready.
func (c *Coach) Ready() error {
	if !c.Enabled() {
		return nil
	}
	if c.breaker.GetState() == resilience.StateOpen {
		return fmt.Errorf("%s: %w", c.backend.Name(), resilience.ErrCircuitOpen)
	}
	return nil
}

// Analyze asks the model to critique the session described by summary.
func (c *Coach) Analyze(ctx context.Context, summary session.Summary) (*Critique, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	ctx, span := observability.StartSpan(ctx, "coach.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", summary.SessionID),
		attribute.String("coach.backend", c.backend.Name()),
		attribute.Int("session.total_words", summary.TotalWords),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(summary)
	logger := observability.WithTrace(ctx, c.logger)

	var critique *Critique
	err := resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		var answer string
		err := c.breaker.Call(func() error {
			var err error
			answer, err = c.backend.Complete(ctx, systemPrompt, prompt)
			if err != nil {
				return resilience.NewRetryableError(fmt.Errorf("%s completion: %w", c.backend.Name(), err))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// A malformed answer is not a backend failure and leaves the breaker alone.
		parsed, err := ParseCritique(answer)
		if err != nil {
			return err
		}
		critique = parsed
		return nil
	}, resilience.IsRetryable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("session_id", summary.SessionID).Msg("Deep coaching failed")
		return nil, err
	}

	logger.Info().
		Str("session_id", summary.SessionID).
		Float64("content_quality_score", critique.ContentQualityScore).
		Float64("communication_score", critique.CommunicationScore).
		Msg("Deep coaching complete")
	return critique, nil
}
