package session

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
)

func TestNewFillerBreakdown(t *testing.T) {
	b := NewFillerBreakdown([]string{"like", "um", "you know", "um", "like", "um"})
	want := FillerBreakdown{{"um", 3}, {"like", 2}, {"you know", 1}}
	if !slices.Equal(b, want) {
		t.Errorf("NewFillerBreakdown() = %v, want %v", b, want)
	}
	if b.Total() != 6 {
		t.Errorf("Total() = %d, want 6", b.Total())
	}
	if b.Top() != "um" {
		t.Errorf("Top() = %q, want um", b.Top())
	}

	if got := NewFillerBreakdown(nil).Top(); got != "" {
		t.Errorf("empty Top() = %q", got)
	}
}

func TestFillerBreakdown_JSONKeepsOrder(t *testing.T) {
	b := FillerBreakdown{{"um", 3}, {"you know", 2}, {"a\"b", 1}}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"um":3,"you know":2,"a\"b":1}`; string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back FillerBreakdown
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !slices.Equal(back, b) {
		t.Errorf("Unmarshal() = %v, want %v", back, b)
	}

	empty, _ := json.Marshal(FillerBreakdown{})
	if string(empty) != "{}" {
		t.Errorf("empty breakdown = %s, want {}", empty)
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &back); err == nil {
		t.Error("expected error for array input")
	}
}

func TestSummary_JSONKeys(t *testing.T) {
	s := Summary{
		SessionID:     "hidden",
		FillerDetails: FillerBreakdown{},
		Strengths:     []string{"Perfect pacing"},
		Improvements:  []string{"You're doing great!"},
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{
		"duration_seconds", "total_words", "total_sentences", "filler_count",
		"filler_details", "avg_wpm", "confidence_score", "strengths",
		"improvements", "full_transcript",
	} {
		if _, ok := fields[key]; !ok {
			t.Errorf("summary JSON missing %q", key)
		}
	}
	if len(fields) != 10 {
		t.Errorf("summary JSON has %d keys, want 10", len(fields))
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("session id should not be part of the summary payload")
	}
}
