package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/echomind/coach-gateway/internal/audio"
	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/gateway"
	"github.com/echomind/coach-gateway/internal/session"
)

const (
	streamSampleRate = 16000

	// Below this level the file is most likely silence or the wrong format.
	quietRMS = 50
)

type streamOptions struct {
	url        string
	chunk      time.Duration
	speed      float64
	tail       time.Duration
	reportWait time.Duration
	rawRate    int
}

func newStreamCmd() *cobra.Command {
	opts := streamOptions{}

	cmd := &cobra.Command{
		Use:   "stream <file.wav|file.raw>",
		Short: "Stream an audio file to a running gateway and print live feedback",
		Long: "Connects to the gateway, starts a session and streams the file in real time.\n" +
			"WAV files must be 16-bit PCM and are converted to 16 kHz mono; .raw files are\n" +
			"read as mono linear16 at --rate.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pcm, err := loadAudio(args[0], opts.rawRate)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), describeAudio(pcm))
			_, err = streamAudio(cmd.Context(), opts, pcm, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", config.GetEnv("COACH_GATEWAY_URL", "ws://localhost:8000/ws"), "gateway websocket URL")
	cmd.Flags().DurationVar(&opts.chunk, "chunk", 100*time.Millisecond, "audio per websocket frame")
	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "playback speed multiplier")
	cmd.Flags().DurationVar(&opts.tail, "tail", 2*time.Second, "wait after the last chunk for final transcripts")
	cmd.Flags().DurationVar(&opts.reportWait, "report-wait", 0, "wait this long for the coaching report (0 = don't wait)")
	cmd.Flags().IntVar(&opts.rawRate, "rate", streamSampleRate, "sample rate of .raw input")
	return cmd
}

// loadAudio returns the file as 16 kHz mono linear16.
func loadAudio(path string, rawRate int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		wav, err := audio.ParseWAV(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return audio.ToLinear16(wav.Samples, wav.SampleRate, wav.Channels, streamSampleRate), nil
	}

	samples, err := audio.DecodePCM16(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return audio.ToLinear16(samples, rawRate, 1, streamSampleRate), nil
}

// describeAudio reports the length and level of 16 kHz mono PCM16.
func describeAudio(pcm []byte) string {
	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	seconds := float64(len(samples)) / streamSampleRate
	rms := audio.CalculateRMS(samples)

	line := mutedStyle.Render(fmt.Sprintf("%.1fs of audio, level %.0f RMS", seconds, rms))
	if rms < quietRMS {
		line += " " + errorStyle.Render("(very quiet, expect few transcripts)")
	}
	return line
}

// streamAudio runs one session against the gateway at opts.url, printing
// server messages to out as they arrive.
func streamAudio(ctx context.Context, opts streamOptions, pcm []byte, out io.Writer) (session.Summary, error) {
	if opts.speed <= 0 {
		return session.Summary{}, fmt.Errorf("--speed must be positive, got %v", opts.speed)
	}

	conn, _, err := websocket.Dial(ctx, opts.url, nil)
	if err != nil {
		return session.Summary{}, fmt.Errorf("dial %s: %w", opts.url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	started := make(chan string, 1)
	summaries := make(chan session.Summary, 1)
	reports := make(chan struct{}, 1)
	readErr := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.Read(readCtx)
			if err != nil {
				readErr <- err
				return
			}
			var msg gateway.ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				_, _ = fmt.Fprintln(out, mutedStyle.Render("ignoring malformed message: "+err.Error()))
				continue
			}

			switch msg.Type {
			case gateway.MsgSessionStarted:
				notify(started, msg.SessionID)
			case gateway.MsgFeedback:
				if msg.Data != nil {
					_, _ = fmt.Fprintln(out, renderFeedback(*msg.Data))
				}
			case gateway.MsgSessionSummary:
				if msg.Summary == nil {
					continue
				}
				if msg.Persisted != nil && !*msg.Persisted {
					_, _ = fmt.Fprintln(out, errorStyle.Render("summary was not persisted"))
				}
				notify(summaries, *msg.Summary)
			case gateway.MsgCoachingReport:
				if msg.Report != nil {
					_, _ = fmt.Fprintln(out, renderCritique(msg.Report))
				}
				notify(reports, struct{}{})
			case gateway.MsgCoachingFailed:
				_, _ = fmt.Fprintln(out, errorStyle.Render("coaching report failed: "+msg.Error))
				notify(reports, struct{}{})
			}
		}
	}()

	send := func(typ string) error {
		data, _ := json.Marshal(gateway.ClientMessage{Type: typ})
		return conn.Write(ctx, websocket.MessageText, data)
	}

	if err := send(gateway.MsgStartSession); err != nil {
		return session.Summary{}, fmt.Errorf("start session: %w", err)
	}
	select {
	case id := <-started:
		_, _ = fmt.Fprintln(out, titleStyle.Render("Session "+id))
	case err := <-readErr:
		return session.Summary{}, fmt.Errorf("waiting for session start: %w", err)
	case <-ctx.Done():
		return session.Summary{}, ctx.Err()
	}

	chunkSize := audio.ChunkBytes(streamSampleRate, opts.chunk)
	pause := time.Duration(float64(opts.chunk) / opts.speed)
	ticker := time.NewTicker(max(pause, time.Millisecond))
	defer ticker.Stop()

	for off := 0; off < len(pcm); off += chunkSize {
		end := min(off+chunkSize, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return session.Summary{}, fmt.Errorf("send audio: %w", err)
		}
		select {
		case <-ticker.C:
		case err := <-readErr:
			return session.Summary{}, fmt.Errorf("connection lost: %w", err)
		case <-ctx.Done():
			return session.Summary{}, ctx.Err()
		}
	}

	// Let the transcriber deliver its last finals
	select {
	case <-time.After(opts.tail):
	case <-ctx.Done():
		return session.Summary{}, ctx.Err()
	}

	if err := send(gateway.MsgEndSession); err != nil {
		return session.Summary{}, fmt.Errorf("end session: %w", err)
	}

	var summary session.Summary
	select {
	case summary = <-summaries:
		_, _ = fmt.Fprintln(out, renderSummary(summary))
	case err := <-readErr:
		return session.Summary{}, fmt.Errorf("waiting for summary: %w", err)
	case <-time.After(10 * time.Second):
		return session.Summary{}, errors.New("timed out waiting for session summary")
	case <-ctx.Done():
		return session.Summary{}, ctx.Err()
	}

	if opts.reportWait > 0 {
		select {
		case <-reports:
		case <-time.After(opts.reportWait):
			_, _ = fmt.Fprintln(out, mutedStyle.Render("no coaching report yet; see `coachctl sessions show`"))
		case <-ctx.Done():
		}
	}

	_ = conn.Close(websocket.StatusNormalClosure, "session complete")
	return summary, nil
}

// notify delivers v unless an earlier value is still pending.
func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
