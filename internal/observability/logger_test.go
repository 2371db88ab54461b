package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithSession(WithCorrelationID(base, "corr-1"), "sess-1")
	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["correlation_id"] != "corr-1" {
		t.Errorf("correlation_id = %v, want corr-1", entry["correlation_id"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
}

func TestWithCorrelationID_Generates(t *testing.T) {
	var buf bytes.Buffer
	logger := WithCorrelationID(zerolog.New(&buf), "")
	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	id, _ := entry["correlation_id"].(string)
	if len(id) != 36 {
		t.Errorf("correlation_id = %q, want a generated uuid", id)
	}
}
