package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var (
	globalLogger zerolog.Logger
	loggerMu     sync.RWMutex
	initialized  bool
)

// InitLogger initializes the global structured logger. Later calls are
// ignored.
func InitLogger(level string, pretty bool) {
	initLogger(os.Stdout, level, pretty)
}

func initLogger(out io.Writer, level string, pretty bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if initialized {
		return
	}

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		// Console output for development
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	globalLogger = zerolog.New(out).With().Timestamp().Str("service", ServiceName).Logger()

	log.Logger = globalLogger
	initialized = true
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	loggerMu.RLock()
	ok := initialized
	l := globalLogger
	loggerMu.RUnlock()
	if ok {
		return l
	}

	InitLogger("info", false)
	return GetLogger()
}

// WithCorrelationID adds a correlation id to logger, generating one when
// correlationID is empty.
func WithCorrelationID(logger zerolog.Logger, correlationID string) zerolog.Logger {
	if correlationID == "" {
		correlationID = NewCorrelationID()
	}
	return logger.With().Str("correlation_id", correlationID).Logger()
}

// NewCorrelationID generates a new correlation ID
func NewCorrelationID() string {
	return uuid.New().String()
}

// WithSession adds the session id to logger.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// WithTrace adds trace_id and span_id from the span in ctx, if any.
func WithTrace(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return logger
	}
	return logger.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
}
