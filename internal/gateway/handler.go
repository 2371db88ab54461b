package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/echomind/coach-gateway/internal/coach"
	"github.com/echomind/coach-gateway/internal/session"
	"github.com/echomind/coach-gateway/internal/stt"
)

// CritiqueSaver stores deep coaching results next to the session record.
type CritiqueSaver interface {
	SaveCritique(ctx context.Context, sessionID string, report any) error
}

// Options configures a Handler
type Options struct {
	FlushInterval    time.Duration // Outbox drain tick
	OutboxSize       int           // Outbox bound
	CommandQueueSize int           // Control messages awaiting the event loop
	Coach            *coach.Coach  // Optional deep coaching
	Critiques        CritiqueSaver // Optional critique persistence
	SessionOptions   []session.Option
	WriteTimeout     time.Duration
	MaxMessageBytes  int64
	AllowAllOrigins  bool
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultOptions returns the protocol defaults
func DefaultOptions() Options {
	return Options{
		FlushInterval:    500 * time.Millisecond,
		OutboxSize:       64,
		CommandQueueSize: 16,
		WriteTimeout:     10 * time.Second,
		MaxMessageBytes:  1 << 20,
		AllowAllOrigins:  true,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// Handler upgrades HTTP requests to websocket coaching connections
type Handler struct {
	manager      *session.Manager
	transcribers stt.Factory
	opts         Options
	upgrader     websocket.Upgrader
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHandler creates a Handler. Connections and background coaching runs
// are bound to ctx; Close cancels them.
func NewHandler(ctx context.Context, manager *session.Manager, transcribers stt.Factory, opts Options, logger zerolog.Logger) *Handler {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handler{
		manager:      manager,
		transcribers: transcribers,
		opts:         opts,
		logger:       logger.With().Str("component", "gateway").Logger(),
		ctx:          ctx,
		cancel:       cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
	}
	if opts.AllowAllOrigins {
		h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	c := newConnection(h, conn)
	c.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Client connected")
	if err := c.Serve(h.ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Connection closed")
	}
	c.logger.Info().Msg("Client disconnected")
}

// goTracked runs fn in the background; Close waits for it.
func (h *Handler) goTracked(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(h.ctx)
	}()
}

// Close cancels every connection and coaching run and waits for them, or
// for ctx to expire.
func (h *Handler) Close(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of sessions currently open across connections
func (h *Handler) Active() int {
	return h.manager.Active()
}
