package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/echomind/coach-gateway/internal/session"
	"github.com/echomind/coach-gateway/internal/stt"
)

// Connection is one client websocket. Control commands and transcript
// fragments are applied to the session by a single event loop.
type Connection struct {
	h      *Handler
	conn   *websocket.Conn
	outbox *Outbox

	// writeMu serializes writes on conn; flushMu keeps a drained batch ahead
	// of anything written after the flush returns.
	writeMu sync.Mutex
	flushMu sync.Mutex

	commands    chan ClientMessage
	transcriber stt.Transcriber

	// active is read by the read loop to gate audio; only the event loop
	// stores it.
	active atomic.Pointer[liveSession]

	// Owned by the event loop
	session *session.Coordinator
	metrics *observability.Metrics

	correlationID string
	baseLogger    zerolog.Logger
	logger        zerolog.Logger
}

type liveSession struct {
	coordinator *session.Coordinator
	metrics     *observability.Metrics
}

func newConnection(h *Handler, conn *websocket.Conn) *Connection {
	correlationID := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(h.logger, correlationID)

	return &Connection{
		h:             h,
		conn:          conn,
		outbox:        NewOutbox(h.opts.OutboxSize, logger),
		commands:      make(chan ClientMessage, max(h.opts.CommandQueueSize, 1)),
		correlationID: correlationID,
		baseLogger:    logger,
		logger:        logger,
	}
}

// Serve runs the connection until the client disconnects or ctx is done.
func (c *Connection) Serve(ctx context.Context) error {
	observability.ConnectionOpened()
	defer observability.ConnectionClosed()

	if c.h.opts.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.h.opts.MaxMessageBytes)
	}

	var transcripts <-chan stt.Transcript
	if c.h.transcribers != nil {
		c.transcriber = c.h.transcribers(c.logger)
		if err := c.transcriber.Start(ctx); err != nil {
			// Sessions still work; they just receive no fragments.
			c.logger.Error().Err(err).Msg("Failed to start transcriber")
			observability.RecordError("stt_start_error", "deepgram")
		}
		transcripts = c.transcriber.Transcripts()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.eventLoop(gctx, transcripts) })
	g.Go(func() error { return c.flushLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// Unblocks the read loop
		c.conn.Close()
		return nil
	})

	err := g.Wait()

	if c.transcriber != nil {
		if cerr := c.transcriber.Close(); cerr != nil {
			c.logger.Warn().Err(cerr).Msg("Error closing transcriber")
		}
	}
	c.endOnDisconnect(context.WithoutCancel(ctx))
	if n := c.outbox.Close(); n > 0 {
		c.logger.Debug().Int("discarded", n).Msg("Discarded undelivered messages")
	}

	if errors.Is(err, context.Canceled) || isClosed(err) {
		return nil
	}
	return err
}

// readLoop decodes client frames: text frames become commands, binary frames
// are forwarded as audio while a session is active.
func (c *Connection) readLoop(ctx context.Context) error {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return err
		}

		switch msgType {
		case websocket.TextMessage:
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.logger.Warn().Err(err).Msg("Ignoring malformed control message")
				continue
			}
			select {
			case c.commands <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}

		case websocket.BinaryMessage:
			c.forwardAudio(data)
		}
	}
}

func (c *Connection) forwardAudio(data []byte) {
	live := c.active.Load()
	if live == nil || live.coordinator.State() != session.StateActive || c.transcriber == nil {
		return
	}
	if err := c.transcriber.SendAudio(data); err != nil {
		c.logger.Debug().Err(err).Msg("Error sending audio to transcriber")
		observability.RecordError("stt_send_error", "deepgram")
		return
	}
	live.metrics.RecordAudioBytes(int64(len(data)))
}

// eventLoop is the only goroutine that touches the session.
func (c *Connection) eventLoop(ctx context.Context, transcripts <-chan stt.Transcript) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-c.commands:
			if err := c.handleCommand(ctx, msg); err != nil {
				return err
			}

		case t, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			c.handleFragment(t.Text)
		}
	}
}

func (c *Connection) handleFragment(text string) {
	if c.session == nil {
		observability.RecordFragmentDropped()
		c.logger.Debug().Str("text", text).Msg("Dropping fragment with no active session")
		return
	}
	if c.session.State() != session.StateActive {
		observability.RecordFragmentDropped()
		return
	}

	c.metrics.RecordFragment()
	fb, ok := c.session.Ingest(text)
	if !ok {
		return
	}
	c.outbox.Push(feedbackMessage(fb))
}

func (c *Connection) handleCommand(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case MsgStartSession:
		return c.startSession(ctx)

	case MsgPauseSession:
		if c.session == nil {
			return nil
		}
		c.session.Pause()
		c.logger.Info().Str("session_id", c.session.ID()).Msg("Session paused")
		return c.write(ServerMessage{Type: MsgSessionPaused})

	case MsgResumeSession:
		if c.session == nil {
			return nil
		}
		c.session.Resume()
		c.logger.Info().Str("session_id", c.session.ID()).Msg("Session resumed")
		return c.write(ServerMessage{Type: MsgSessionResumed})

	case MsgEndSession:
		return c.endSession(ctx)

	default:
		c.logger.Warn().Str("type", msg.Type).Msg("Ignoring unknown control message")
		return nil
	}
}

func (c *Connection) startSession(ctx context.Context) error {
	if c.session != nil {
		return c.write(ServerMessage{Type: MsgSessionStarted, SessionID: c.session.ID()})
	}

	opts := append([]session.Option(nil), c.h.opts.SessionOptions...)
	opts = append(opts, session.WithCheckpointObserver(c.observeCheckpoint))

	s, err := c.h.manager.Start(ctx, opts...)
	if s == nil {
		c.logger.Error().Err(err).Msg("Failed to start session")
		observability.RecordError("session_start_error", "gateway")
		return nil
	}
	if err != nil {
		// The session runs anyway; its summary is still returned at the end.
		c.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("Session start not persisted")
	}

	c.session = s
	c.metrics = observability.NewSessionMetrics(s.ID())
	c.metrics.RecordSessionStart()
	c.active.Store(&liveSession{coordinator: s, metrics: c.metrics})
	c.logger = observability.WithSession(c.baseLogger, s.ID())

	return c.write(ServerMessage{Type: MsgSessionStarted, SessionID: s.ID()})
}

func (c *Connection) observeCheckpoint(cp session.Checkpoint) {
	c.logger.Info().
		Int("checkpoint", cp.Index).
		Int("words", cp.Metrics.WordCount).
		Float64("wpm", cp.Metrics.WPM).
		Int("fillers", cp.Metrics.FillerCount).
		Strs("filler_list", cp.Metrics.Fillers).
		Int("power_words", cp.Metrics.PowerCount).
		Str("tier", cp.Feedback.Tier.String()).
		Str("category", string(cp.Feedback.Category)).
		Msg("Checkpoint")
	if c.metrics != nil {
		c.metrics.RecordCheckpoint(string(cp.Feedback.Category), cp.Feedback.Tier.String(), cp.Metrics.FillerCount)
	}
}

func (c *Connection) endSession(ctx context.Context) error {
	if c.session == nil {
		return nil
	}

	summary, persisted, ok := c.finish(ctx)
	if !ok {
		return nil
	}

	// Feedback produced before the end goes out ahead of the summary.
	if err := c.flush(); err != nil {
		return err
	}
	if err := c.write(summaryMessage(summary, persisted)); err != nil {
		return err
	}

	if c.h.opts.Coach.Enabled() {
		logger := observability.WithSession(c.baseLogger, summary.SessionID)
		c.h.goTracked(func(ctx context.Context) { c.runCoach(ctx, summary, logger) })
	}
	return nil
}

// finish ends the current session and clears it from the connection.
func (c *Connection) finish(ctx context.Context) (session.Summary, bool, bool) {
	id := c.session.ID()
	metrics := c.metrics

	c.active.Store(nil)
	c.session = nil
	c.metrics = nil

	summary, err := c.h.manager.End(ctx, id)
	metrics.RecordSessionEnd()
	logger := c.logger
	c.logger = c.baseLogger
	if err != nil && !session.IsPersistence(err) {
		logger.Warn().Err(err).Msg("Failed to end session")
		return session.Summary{}, false, false
	}

	persisted := err == nil
	if !persisted {
		metrics.RecordError("persistence_error", "store")
	}
	return summary, persisted, true
}

// endOnDisconnect closes a session the client never ended so its summary is
// still recorded.
func (c *Connection) endOnDisconnect(ctx context.Context) {
	if c.session == nil {
		return
	}
	c.logger.Info().Msg("Client disconnected with open session, ending it")
	c.finish(ctx)
}

func (c *Connection) runCoach(ctx context.Context, summary session.Summary, logger zerolog.Logger) {
	metrics := observability.NewSessionMetrics(summary.SessionID)

	metrics.RecordCoachStart()
	critique, err := c.h.opts.Coach.Analyze(ctx, summary)
	metrics.RecordCoachEnd(err == nil)

	if err != nil {
		logger.Warn().Err(err).Msg("Coaching report unavailable")
		c.outbox.Push(ServerMessage{Type: MsgCoachingFailed, SessionID: summary.SessionID, Error: err.Error()})
		return
	}

	if saver := c.h.opts.Critiques; saver != nil {
		if err := saver.SaveCritique(ctx, summary.SessionID, critique); err != nil {
			logger.Error().Err(err).Msg("Failed to store coaching report")
		}
	}

	if !c.outbox.Push(ServerMessage{Type: MsgCoachingReport, SessionID: summary.SessionID, Report: critique}) {
		logger.Debug().Msg("Connection closed before coaching report was ready")
	}
}

// flushLoop delivers outbox contents on every tick.
func (c *Connection) flushLoop(ctx context.Context) error {
	interval := c.h.opts.FlushInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.flush(); err != nil {
				return err
			}
		}
	}
}

func (c *Connection) flush() error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	for _, msg := range c.outbox.Drain() {
		if err := c.write(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) write(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.h.opts.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.h.opts.WriteTimeout))
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func isClosed(err error) bool {
	if err == nil {
		return false
	}
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)
}
