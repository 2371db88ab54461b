package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("COACH_PROVIDER", "openai-native")
	t.Setenv("CHECKPOINT_INTERVAL", "6")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.CoachProvider != "openai-native" {
		t.Errorf("Expected CoachProvider 'openai-native', got '%s'", cfg.CoachProvider)
	}
	if cfg.CheckpointInterval != 6 {
		t.Errorf("Expected CheckpointInterval 6, got %d", cfg.CheckpointInterval)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Port", cfg.Port, "8000"},
		{"DeepgramModel", cfg.DeepgramModel, "nova-2"},
		{"DeepgramLanguage", cfg.DeepgramLanguage, "en-US"},
		{"DeepgramEncoding", cfg.DeepgramEncoding, "linear16"},
		{"DeepgramSampleRate", cfg.DeepgramSampleRate, 16000},
		{"DeepgramSmartFormat", cfg.DeepgramSmartFormat, true},
		{"CheckpointInterval", cfg.CheckpointInterval, 4},
		{"FeedbackQueueSize", cfg.FeedbackQueueSize, 64},
		{"FragmentQueueSize", cfg.FragmentQueueSize, 256},
		{"StoreDriver", cfg.StoreDriver, "sqlite"},
		{"StoreDSN", cfg.StoreDSN, "echomind_sessions.db"},
		{"CoachEnabled", cfg.CoachEnabled, true},
		{"CoachProvider", cfg.CoachProvider, "gemini"},
		{"CoachModel", cfg.CoachModel, "gemini-1.5-flash"},
		{"CircuitBreakerMaxFailures", cfg.CircuitBreakerMaxFailures, 5},
		{"LogLevel", cfg.LogLevel, "info"},
		{"MetricsEnabled", cfg.MetricsEnabled, true},
		{"TracingEnabled", cfg.TracingEnabled, true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("default %s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if cfg.FeedbackFlushInterval() != 500*time.Millisecond {
		t.Errorf("FeedbackFlushInterval() = %v", cfg.FeedbackFlushInterval())
	}
	if cfg.CoachTimeoutDuration() != time.Minute {
		t.Errorf("CoachTimeoutDuration() = %v", cfg.CoachTimeoutDuration())
	}
	if cfg.CircuitBreakerReset() != 30*time.Second {
		t.Errorf("CircuitBreakerReset() = %v", cfg.CircuitBreakerReset())
	}
	if cfg.RetryBackoff() != 100*time.Millisecond {
		t.Errorf("RetryBackoff() = %v", cfg.RetryBackoff())
	}
	if cfg.ReconnectBackoffDuration() != time.Second {
		t.Errorf("ReconnectBackoffDuration() = %v", cfg.ReconnectBackoffDuration())
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"zero interval", map[string]string{"CHECKPOINT_INTERVAL": "0"}, "CHECKPOINT_INTERVAL"},
		{"bad driver", map[string]string{"STORE_DRIVER": "mysql"}, "STORE_DRIVER"},
		{"zero queue", map[string]string{"FEEDBACK_QUEUE_SIZE": "0"}, "QUEUE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEEPGRAM_API_KEY", "key")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromEnv() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadStore_NoProviderKeys(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "postgres://localhost/coach")

	cfg, err := LoadStore()
	if err != nil {
		t.Fatalf("LoadStore() failed: %v", err)
	}
	if cfg.StoreDriver != "postgres" || cfg.StoreDSN != "postgres://localhost/coach" {
		t.Errorf("store config = %+v", cfg)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("COACH_TEST_VALUE", "set")
	if got := GetEnv("COACH_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("GetEnv() = %q", got)
	}
	if got := GetEnv("COACH_TEST_UNSET_VALUE", "fallback"); got != "fallback" {
		t.Errorf("GetEnv() = %q", got)
	}
}
