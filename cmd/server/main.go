package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/echomind/coach-gateway/internal/analysis"
	"github.com/echomind/coach-gateway/internal/coach"
	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/gateway"
	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/echomind/coach-gateway/internal/session"
	"github.com/echomind/coach-gateway/internal/store"
	"github.com/echomind/coach-gateway/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("store_driver", cfg.StoreDriver).
		Str("coach_provider", cfg.CoachProvider).
		Bool("coach_enabled", cfg.CoachEnabled).
		Int("checkpoint_interval", cfg.CheckpointInterval).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Coach Gateway starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Coach Gateway failed")
	}
	logger.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{Enabled: cfg.TracingEnabled})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// Persistence
	sessions, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer sessions.Close()
	recorder := store.Instrument(sessions)

	// Lexicon, hot reloaded when a file is configured
	var lexicon analysis.LexiconSource = analysis.NewStaticLexicon(analysis.DefaultLexicon())
	if cfg.LexiconPath != "" {
		watcher, err := analysis.NewLexiconWatcher(cfg.LexiconPath, logger)
		if err != nil {
			return fmt.Errorf("load lexicon: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Lexicon watcher stopped")
			}
		}()
		lexicon = watcher
	}

	deepCoach, err := coach.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("create coach: %w", err)
	}

	manager := session.NewManager(recorder, logger,
		session.WithCheckpointInterval(cfg.CheckpointInterval),
		session.WithLexicon(lexicon),
	)

	opts := gateway.DefaultOptions()
	opts.FlushInterval = cfg.FeedbackFlushInterval()
	opts.OutboxSize = cfg.FeedbackQueueSize
	opts.Coach = deepCoach
	opts.Critiques = recorder
	handler := gateway.NewHandler(ctx, manager, stt.NewDeepgramFactory(cfg), opts, logger)

	checks := []observability.HealthCheck{
		{Name: "deepgram", Check: func(context.Context) (bool, error) {
			// Configuration only; a live probe would open a billed stream
			if cfg.DeepgramAPIKey == "" {
				return false, errors.New("DEEPGRAM_API_KEY not set")
			}
			return true, nil
		}},
		{Name: "store", Check: func(ctx context.Context) (bool, error) {
			if err := sessions.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}},
		{Name: "coach", Check: func(context.Context) (bool, error) {
			if err := deepCoach.Ready(); err != nil {
				return false, err
			}
			return true, nil
		}},
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"EchoMind - Session Management Active","version":%q}`, observability.Version)
	})
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)

	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		health := observability.NewGRPCHealth(10*time.Second, checks...)
		go func() {
			if err := health.Serve(ctx, lis); err != nil {
				errCh <- fmt.Errorf("grpc health: %w", err)
			}
		}()
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Hijacked websocket connections are not covered by Shutdown
	if err := handler.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Int("active_sessions", handler.Active()).Msg("Connections did not drain")
	}
	return nil
}
