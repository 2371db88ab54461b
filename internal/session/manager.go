package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Recorder persists session lifecycle events. It is satisfied by the session
// stores.
type Recorder interface {
	CreateSession(ctx context.Context, sessionID string, startedAt time.Time) error
	EndSession(ctx context.Context, summary Summary) error
}

// Manager creates and ends sessions, keeping the registry and the recorder in
// step.
type Manager struct {
	registry *Registry
	recorder Recorder
	options  []Option
	newID    func() string
	logger   zerolog.Logger
}

// NewManager creates a Manager. recorder may be nil, in which case nothing is
// persisted. opts are applied to every coordinator the manager creates.
func NewManager(recorder Recorder, logger zerolog.Logger, opts ...Option) *Manager {
	return &Manager{
		registry: NewRegistry(),
		recorder: recorder,
		options:  opts,
		newID:    uuid.NewString,
		logger:   logger.With().Str("component", "session_manager").Logger(),
	}
}

// Start creates a new Active session. If recording the session fails, the
// coordinator is still returned together with an error wrapping
// ErrPersistence.
func (m *Manager) Start(ctx context.Context, opts ...Option) (*Coordinator, error) {
	all := append(append([]Option(nil), m.options...), opts...)
	c := NewCoordinator(m.newID(), all...)
	if err := m.registry.Add(c); err != nil {
		return nil, err
	}

	logger := observability.WithSession(m.logger, c.ID())
	logger.Info().Msg("Session started")

	if m.recorder == nil {
		return c, nil
	}
	if err := m.recorder.CreateSession(ctx, c.ID(), c.StartedAt()); err != nil {
		logger.Error().Err(err).Msg("Failed to record session start")
		return c, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return c, nil
}

// Get returns the live coordinator for id.
func (m *Manager) Get(id string) (*Coordinator, error) {
	return m.registry.Get(id)
}

// End finalises the session and persists its summary. A persistence failure
// returns the summary together with an error wrapping ErrPersistence. Ending
// an unknown or already-ended session returns ErrSessionNotFound or
// ErrSessionEnded and produces no summary.
func (m *Manager) End(ctx context.Context, id string) (Summary, error) {
	ctx, span := observability.StartSpan(ctx, "session.end")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	c, err := m.registry.Get(id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	summary, err := c.End()
	m.registry.Remove(id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	span.SetAttributes(
		attribute.Int("session.duration_seconds", summary.DurationSeconds),
		attribute.Int("session.total_words", summary.TotalWords),
		attribute.Int("session.filler_count", summary.FillerCount),
		attribute.Int("session.confidence_score", summary.ConfidenceScore),
	)

	logger := observability.WithTrace(ctx, observability.WithSession(m.logger, id))
	logger.Info().
		Int("duration_seconds", summary.DurationSeconds).
		Int("total_words", summary.TotalWords).
		Int("filler_count", summary.FillerCount).
		Float64("avg_wpm", summary.AvgWPM).
		Int("confidence_score", summary.ConfidenceScore).
		Msg("Session ended")

	if m.recorder == nil {
		return summary, nil
	}
	if err := m.recorder.EndSession(ctx, summary); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist summary")
		logger.Error().Err(err).Msg("Failed to persist session summary")
		return summary, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return summary, nil
}

// Active returns the number of sessions not yet ended.
func (m *Manager) Active() int {
	return m.registry.Len()
}

// IsPersistence reports whether err is a persistence failure whose operation
// otherwise succeeded.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
