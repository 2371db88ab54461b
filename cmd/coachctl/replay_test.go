package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/echomind/coach-gateway/internal/analysis"
	"github.com/echomind/coach-gateway/internal/session"
)

// Ten words, no fillers, no power words.
const plainLine = "the team met every week to review the open tickets"

func TestReplaySimulatedPace(t *testing.T) {
	transcript := strings.Repeat(plainLine+"\n", 8)

	var checkpoints []session.Checkpoint
	summary, err := replay(strings.NewReader(transcript), replayOptions{wpm: 120, interval: 4, seed: 7}, func(cp session.Checkpoint) {
		checkpoints = append(checkpoints, cp)
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if len(checkpoints) != 2 {
		t.Fatalf("Expected 2 checkpoints, got %d", len(checkpoints))
	}
	for _, cp := range checkpoints {
		if cp.Metrics.WordCount != 40 {
			t.Errorf("Checkpoint %d: expected 40 words, got %d", cp.Index, cp.Metrics.WordCount)
		}
		if math.Abs(cp.Metrics.WPM-120) > 0.01 {
			t.Errorf("Checkpoint %d: expected 120 wpm, got %f", cp.Index, cp.Metrics.WPM)
		}
		if cp.Feedback.Tier != analysis.TierClarity {
			t.Errorf("Checkpoint %d: expected clarity tier, got %s", cp.Index, cp.Feedback.Tier)
		}
	}

	if summary.TotalSentences != 8 || summary.TotalWords != 80 {
		t.Errorf("Expected 8 sentences and 80 words, got %d and %d", summary.TotalSentences, summary.TotalWords)
	}
	if summary.DurationSeconds != 40 {
		t.Errorf("Expected 40 seconds, got %d", summary.DurationSeconds)
	}
	if summary.AvgWPM != 120 {
		t.Errorf("Expected 120 avg wpm, got %v", summary.AvgWPM)
	}
	if summary.ConfidenceScore != 70 {
		t.Errorf("Expected confidence 70, got %d", summary.ConfidenceScore)
	}
}

func TestReplayCustomLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(path, []byte("filler_words: [team]\n"), 0o644); err != nil {
		t.Fatalf("write lexicon: %v", err)
	}

	summary, err := replay(strings.NewReader(plainLine+"\n"), replayOptions{wpm: 120, interval: 4, lexicon: path}, nil)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	// The partial window is never analysed.
	if summary.FillerCount != 0 {
		t.Errorf("Expected 0 fillers from an unfinished window, got %d", summary.FillerCount)
	}

	summary, err = replay(strings.NewReader(strings.Repeat(plainLine+"\n", 4)), replayOptions{wpm: 120, interval: 4, lexicon: path}, nil)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if summary.FillerCount != 4 || summary.FillerDetails.Top() != "team" {
		t.Errorf("Expected 4 'team' fillers, got %d (%v)", summary.FillerCount, summary.FillerDetails)
	}
}

func TestReplayRejectsNonPositivePace(t *testing.T) {
	if _, err := replay(strings.NewReader(plainLine), replayOptions{wpm: 0, interval: 4}, nil); err == nil {
		t.Error("Expected error for zero wpm")
	}
}
