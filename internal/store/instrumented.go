package store

import (
	"context"
	"time"

	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/echomind/coach-gateway/internal/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented wraps a Store with tracing spans and operation metrics.
type Instrumented struct {
	Store
}

// Instrument wraps s.
func Instrument(s Store) *Instrumented {
	return &Instrumented{Store: s}
}

func (i *Instrumented) observe(ctx context.Context, op, sessionID string, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "store."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	if sessionID != "" {
		span.SetAttributes(attribute.String("session.id", sessionID))
	}

	err := fn(ctx)
	observability.RecordStoreOperation(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	return err
}

// CreateSession implements Store.
func (i *Instrumented) CreateSession(ctx context.Context, sessionID string, startedAt time.Time) error {
	return i.observe(ctx, "create_session", sessionID, func(ctx context.Context) error {
		return i.Store.CreateSession(ctx, sessionID, startedAt)
	})
}

// EndSession implements Store.
func (i *Instrumented) EndSession(ctx context.Context, summary session.Summary) error {
	return i.observe(ctx, "end_session", summary.SessionID, func(ctx context.Context) error {
		return i.Store.EndSession(ctx, summary)
	})
}

// SaveCritique implements Store.
func (i *Instrumented) SaveCritique(ctx context.Context, sessionID string, report any) error {
	return i.observe(ctx, "save_critique", sessionID, func(ctx context.Context) error {
		return i.Store.SaveCritique(ctx, sessionID, report)
	})
}
