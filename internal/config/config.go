package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// StoreConfig selects the session store. It is shared by the server and the
// operator CLI.
type StoreConfig struct {
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`               // sqlite or postgres
	StoreDSN    string `envconfig:"STORE_DSN" default:"echomind_sessions.db"` // File path (sqlite) or DSN (postgres)
}

// Config holds all configuration for the coaching gateway service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8000"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""` // Serve grpc.health.v1 when set

	// Deepgram STT API configuration
	DeepgramAPIKey      string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel       string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage    string `envconfig:"DEEPGRAM_LANGUAGE" default:"en-US"`
	DeepgramEncoding    string `envconfig:"DEEPGRAM_ENCODING" default:"linear16"`
	DeepgramSampleRate  int    `envconfig:"DEEPGRAM_SAMPLE_RATE" default:"16000"`
	DeepgramSmartFormat bool   `envconfig:"DEEPGRAM_SMART_FORMAT" default:"true"`

	// Session analysis configuration
	CheckpointInterval      int    `envconfig:"CHECKPOINT_INTERVAL" default:"4"`          // Fragments per checkpoint window
	FeedbackFlushIntervalMs int    `envconfig:"FEEDBACK_FLUSH_INTERVAL_MS" default:"500"` // Outbox drain tick
	FeedbackQueueSize       int    `envconfig:"FEEDBACK_QUEUE_SIZE" default:"64"`         // Outbox bound
	FragmentQueueSize       int    `envconfig:"FRAGMENT_QUEUE_SIZE" default:"256"`        // Transcriber to session queue
	LexiconPath             string `envconfig:"LEXICON_PATH" default:""`                  // Optional YAML lexicon, hot reloaded

	// Session store
	StoreConfig

	// Deep coaching (LLM) configuration
	CoachEnabled  bool   `envconfig:"COACH_ENABLED" default:"true"`
	CoachProvider string `envconfig:"COACH_PROVIDER" default:"gemini"` // any-llm-go provider, or openai-native
	CoachModel    string `envconfig:"COACH_MODEL" default:"gemini-1.5-flash"`
	CoachAPIKey   string `envconfig:"COACH_API_KEY" default:""` // Falls back to the provider's own env var
	CoachBaseURL  string `envconfig:"COACH_BASE_URL" default:""`
	CoachTimeout  int    `envconfig:"COACH_TIMEOUT" default:"60"` // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Expose Prometheus metrics
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"true"` // Record OpenTelemetry spans
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStore reads only the store settings, loading .env first. It does not
// require the provider keys.
func LoadStore() (*StoreConfig, error) {
	_ = godotenv.Load()

	var cfg StoreConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load store config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.DeepgramAPIKey == "" {
		errs = append(errs, errors.New("DEEPGRAM_API_KEY is required"))
	}
	if c.CheckpointInterval < 1 {
		errs = append(errs, fmt.Errorf("CHECKPOINT_INTERVAL must be at least 1, got %d", c.CheckpointInterval))
	}
	if c.FeedbackFlushIntervalMs < 1 {
		errs = append(errs, fmt.Errorf("FEEDBACK_FLUSH_INTERVAL_MS must be positive, got %d", c.FeedbackFlushIntervalMs))
	}
	if c.FeedbackQueueSize < 1 || c.FragmentQueueSize < 1 {
		errs = append(errs, errors.New("FEEDBACK_QUEUE_SIZE and FRAGMENT_QUEUE_SIZE must be positive"))
	}
	if err := c.StoreConfig.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the store driver.
func (c *StoreConfig) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "postgres":
		return nil
	default:
		return fmt.Errorf("STORE_DRIVER must be sqlite or postgres, got %q", c.StoreDriver)
	}
}

// FeedbackFlushInterval returns the outbox drain period.
func (c *Config) FeedbackFlushInterval() time.Duration {
	return time.Duration(c.FeedbackFlushIntervalMs) * time.Millisecond
}

// CoachTimeoutDuration returns the deep coaching request timeout.
func (c *Config) CoachTimeoutDuration() time.Duration {
	return time.Duration(c.CoachTimeout) * time.Second
}

// CircuitBreakerReset returns the breaker reset timeout.
func (c *Config) CircuitBreakerReset() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// RetryBackoff returns the initial retry backoff.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryInitialBackoff) * time.Millisecond
}

// ReconnectBackoffDuration returns the initial reconnect backoff.
func (c *Config) ReconnectBackoffDuration() time.Duration {
	return time.Duration(c.ReconnectBackoff) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
