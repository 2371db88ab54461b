package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echomind/coach-gateway/internal/audio"
	"github.com/echomind/coach-gateway/internal/gateway"
	"github.com/echomind/coach-gateway/internal/session"
	"github.com/echomind/coach-gateway/internal/stt"
)

// echoTranscriber emits one fragment for every audio chunk it receives.
type echoTranscriber struct {
	ch   chan stt.Transcript
	once sync.Once
}

func (e *echoTranscriber) Start(context.Context) error { return nil }

func (e *echoTranscriber) SendAudio([]byte) error {
	e.ch <- stt.Transcript{Text: "I built and delivered the new billing service"}
	return nil
}

func (e *echoTranscriber) Transcripts() <-chan stt.Transcript { return e.ch }

func (e *echoTranscriber) Close() error {
	e.once.Do(func() { close(e.ch) })
	return nil
}

func TestStreamAudioAgainstGateway(t *testing.T) {
	manager := session.NewManager(nil, zerolog.Nop())
	opts := gateway.DefaultOptions()
	opts.FlushInterval = 10 * time.Millisecond
	factory := func(zerolog.Logger) stt.Transcriber {
		return &echoTranscriber{ch: make(chan stt.Transcript, 64)}
	}

	h := gateway.NewHandler(context.Background(), manager, factory, opts, zerolog.Nop())
	srv := httptest.NewServer(h)
	defer func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Close(ctx)
	}()

	// Half a second of silence: five 100ms chunks
	pcm := make([]byte, audio.ChunkBytes(streamSampleRate, 500*time.Millisecond))

	var out bytes.Buffer
	summary, err := streamAudio(context.Background(), streamOptions{
		url:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		chunk: 100 * time.Millisecond,
		speed: 20,
		tail:  200 * time.Millisecond,
	}, pcm, &out)
	if err != nil {
		t.Fatalf("streamAudio failed: %v", err)
	}

	if summary.TotalSentences != 5 {
		t.Errorf("Expected 5 sentences, got %d", summary.TotalSentences)
	}
	if !strings.Contains(out.String(), "Session summary") {
		t.Errorf("Expected rendered summary in output, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "success") && !strings.Contains(out.String(), "info") && !strings.Contains(out.String(), "warning") {
		t.Errorf("Expected one feedback line in output, got:\n%s", out.String())
	}
}

func TestLoadAudioRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.raw")
	samples := make([]int16, 800) // 0.1s at 8kHz
	if err := os.WriteFile(path, audio.EncodePCM16(samples), 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	pcm, err := loadAudio(path, 8000)
	if err != nil {
		t.Fatalf("loadAudio failed: %v", err)
	}
	if len(pcm) != 3200 {
		t.Errorf("Expected 3200 bytes at 16kHz, got %d", len(pcm))
	}
}

func TestLoadAudioRejectsBadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("not a wav file"), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if _, err := loadAudio(path, streamSampleRate); err == nil {
		t.Error("Expected error for invalid WAV")
	}
}

func TestDescribeAudio(t *testing.T) {
	loud := make([]int16, streamSampleRate)
	for i := range loud {
		loud[i] = 1000
	}

	tests := []struct {
		name      string
		pcm       []byte
		want      string
		wantQuiet bool
	}{
		{"one second at level 1000", audio.EncodePCM16(loud), "1.0s of audio, level 1000 RMS", false},
		{"silence", make([]byte, streamSampleRate), "0.5s of audio, level 0 RMS", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeAudio(tt.pcm)
			if !strings.Contains(got, tt.want) {
				t.Errorf("describeAudio() = %q, want it to contain %q", got, tt.want)
			}
			if quiet := strings.Contains(got, "very quiet"); quiet != tt.wantQuiet {
				t.Errorf("quiet warning = %v, want %v", quiet, tt.wantQuiet)
			}
		})
	}
}
