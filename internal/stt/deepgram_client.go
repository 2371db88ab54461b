package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/echomind/coach-gateway/internal/resilience"
)

// ErrNotActive is returned when audio is sent without an open stream.
var ErrNotActive = errors.New("deepgram client is not active")

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse)
}

// Message overrides the default handler to send transcriptions to our channel
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.errorHandler(errorResponse)
	return nil
}

// DeepgramClient implements Transcriber using Deepgram's live streaming API
type DeepgramClient struct {
	config         *config.Config
	client         *listenClient.WSCallback
	transcripts    chan Transcript
	mu             sync.RWMutex
	isActive       bool
	closed         bool
	ctx            context.Context
	cancel         context.CancelFunc
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramClient creates a new Deepgram streaming client
func NewDeepgramClient(cfg *config.Config, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *DeepgramClient {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("deepgram", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerReset())
	}
	return &DeepgramClient{
		config:         cfg,
		transcripts:    make(chan Transcript, cfg.FragmentQueueSize),
		circuitBreaker: breaker,
		logger:         logger.With().Str("component", "deepgram").Logger(),
	}
}

// NewDeepgramFactory returns a Factory that shares one circuit breaker
// across sessions.
func NewDeepgramFactory(cfg *config.Config) Factory {
	breaker := resilience.NewCircuitBreaker("deepgram", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerReset())
	return func(logger zerolog.Logger) Transcriber {
		return NewDeepgramClient(cfg, breaker, logger)
	}
}

// Start opens a Deepgram streaming transcription session
func (d *DeepgramClient) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrNotActive
	}
	if d.ctx == nil {
		d.ctx, d.cancel = context.WithCancel(ctx)
	}
	d.mu.Unlock()

	return d.circuitBreaker.Call(d.connect)
}

// connect dials Deepgram and marks the client active.
func (d *DeepgramClient) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return nil
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.config.DeepgramLanguage,
		Punctuate:      true,
		SmartFormat:    d.config.DeepgramSmartFormat,
		InterimResults: false,
		Encoding:       d.config.DeepgramEncoding,
		Channels:       1,
		SampleRate:     d.config.DeepgramSampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleDeepgramMessage,
		errorHandler:           d.handleDeepgramError,
	}

	client, err := listenClient.NewWSUsingCallback(d.ctx, d.config.DeepgramAPIKey, nil, tOptions, callback)
	if err != nil {
		return fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return errors.New("failed to connect to Deepgram")
	}

	d.client = client
	d.isActive = true
	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", d.config.DeepgramLanguage).
		Msg("Deepgram streaming client started")
	return nil
}

// handleDeepgramMessage forwards final results to the transcript channel
func (d *DeepgramClient) handleDeepgramMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || msg.Type != "Results" || !msg.IsFinal {
		return
	}
	if len(msg.Channel.Alternatives) == 0 {
		return
	}

	alt := msg.Channel.Alternatives[0]
	d.deliver(Transcript{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		StartTime:  msg.Start,
		Duration:   msg.Duration,
	})
}

// deliver queues t. When the queue is full it waits rather than dropping,
// since every fragment counts toward a checkpoint.
func (d *DeepgramClient) deliver(t Transcript) {
	if t.Text == "" {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.transcripts <- t:
		d.logger.Debug().Str("text", t.Text).Float64("confidence", t.Confidence).Msg("Deepgram final transcription")
		return
	default:
	}

	d.logger.Warn().Msg("Transcript queue full, waiting for session to catch up")
	select {
	case d.transcripts <- t:
	case <-d.ctx.Done():
		d.logger.Warn().Str("text", t.Text).Msg("Transcriber closed, dropping transcription")
	}
}

// handleDeepgramError records the failure and reconnects in the background
func (d *DeepgramClient) handleDeepgramError(er *msginterfaces.ErrorResponse) {
	d.logger.Error().Interface("error", er).Msg("Deepgram error")
	d.circuitBreaker.RecordResult(false)
	observability.RecordError("provider", "deepgram")

	d.mu.Lock()
	if d.closed || !d.isActive || d.ctx.Err() != nil {
		d.mu.Unlock()
		return
	}
	d.isActive = false
	d.mu.Unlock()

	go d.attemptReconnect()
}

// SendAudio sends an audio chunk to Deepgram. Chunks arriving while the
// stream is down are rejected with ErrNotActive.
func (d *DeepgramClient) SendAudio(audioData []byte) error {
	d.mu.RLock()
	active := d.isActive
	client := d.client
	d.mu.RUnlock()

	if !active || client == nil {
		return ErrNotActive
	}

	return d.circuitBreaker.Call(func() error {
		if _, err := client.Write(audioData); err != nil {
			d.mu.Lock()
			wasActive := d.isActive
			d.isActive = false
			d.mu.Unlock()
			if wasActive {
				go d.attemptReconnect()
			}
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})
}

// attemptReconnect re-dials Deepgram with backoff
func (d *DeepgramClient) attemptReconnect() {
	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     d.config.ReconnectBackoffDuration(),
		Multiplier:  2.0,
		MaxBackoff:  resilience.DefaultReconnectConfig().MaxBackoff,
	}

	err := resilience.Reconnect(d.ctx, d.logger, reconnectConfig, func(context.Context) error {
		return d.circuitBreaker.Call(d.connect)
	})
	if err != nil && d.ctx.Err() == nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram client, session continues without transcription")
	}
}

// Transcripts returns the channel of finalized transcripts
func (d *DeepgramClient) Transcripts() <-chan Transcript {
	return d.transcripts
}

// Close finishes the Deepgram stream and closes the transcript channel
func (d *DeepgramClient) Close() error {
	d.mu.RLock()
	cancel := d.cancel
	d.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if d.isActive && d.client != nil {
		d.client.Finish()
		d.logger.Info().Msg("Deepgram streaming client stopped")
	}
	d.isActive = false
	close(d.transcripts)
	return nil
}

// IsActive returns whether the client currently has an open stream
func (d *DeepgramClient) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isActive
}
