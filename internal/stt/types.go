// Package stt adapts speech-to-text providers to a channel of finalized
// transcript fragments.
package stt

import (
	"context"

	"github.com/rs/zerolog"
)

// Transcript is one finalized recognition result.
type Transcript struct {
	// Text is the recognized text
	Text string

	// Confidence is the provider's confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start of the utterance in seconds from stream start
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// Transcriber is the interface for streaming speech-to-text clients.
// Transcripts are delivered once each, in recognition order.
type Transcriber interface {
	// Start opens the provider stream. The stream lives until Close or until
	// ctx is cancelled.
	Start(ctx context.Context) error

	// SendAudio forwards a raw audio chunk
	SendAudio(audioData []byte) error

	// Transcripts returns the channel of finalized transcripts. It is closed
	// by Close.
	Transcripts() <-chan Transcript

	// Close ends the stream and releases resources
	Close() error
}

// Factory creates a Transcriber for one session.
type Factory func(logger zerolog.Logger) Transcriber
