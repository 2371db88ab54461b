package analysis

import (
	"reflect"
	"testing"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		fillers int
		wpm     float64
		want    int
	}{
		{0, 130, 70},
		{20, 130, 30},
		{0, 200, 60},
		{5, 0, 45},
		{14, 50, 20},
		{100, 120, 30},
	}

	for _, tt := range tests {
		if got := Confidence(tt.fillers, tt.wpm); got != tt.want {
			t.Errorf("Confidence(%d, %v) = %d, want %d", tt.fillers, tt.wpm, got, tt.want)
		}
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name         string
		stats        SessionStats
		score        int
		strengths    []string
		improvements []string
	}{
		{
			name:         "clean ideal session",
			stats:        SessionStats{TotalFillers: 0, AvgWPM: 130, Sentences: 12},
			score:        70,
			strengths:    []string{"Clean and articulate speech", "Perfect pacing", "Good session length"},
			improvements: []string{"You're doing great!"},
		},
		{
			name:         "filler heavy fast session",
			stats:        SessionStats{TotalFillers: 20, AvgWPM: 185, Sentences: 4, TopFiller: "um"},
			score:        20,
			strengths:    []string{"Keep practicing!"},
			improvements: []string{"Reduce 'um' usage", "Slow down your pace"},
		},
		{
			name:         "slow session without top filler",
			stats:        SessionStats{TotalFillers: 9, AvgWPM: 80, Sentences: 3},
			score:        33,
			strengths:    []string{"Keep practicing!"},
			improvements: []string{"Reduce 'fillers' usage", "Increase energy and pace"},
		},
		{
			name:         "empty session",
			stats:        SessionStats{},
			score:        60,
			strengths:    []string{"Clean and articulate speech"},
			improvements: []string{"Increase energy and pace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Assess(tt.stats)
			if a.ConfidenceScore != tt.score {
				t.Errorf("ConfidenceScore = %d, want %d", a.ConfidenceScore, tt.score)
			}
			if !reflect.DeepEqual(a.Strengths, tt.strengths) {
				t.Errorf("Strengths = %v, want %v", a.Strengths, tt.strengths)
			}
			if !reflect.DeepEqual(a.Improvements, tt.improvements) {
				t.Errorf("Improvements = %v, want %v", a.Improvements, tt.improvements)
			}
		})
	}
}
