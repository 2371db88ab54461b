package analysis

import "fmt"

// SessionStats are the session-lifetime aggregates the scorer works from.
type SessionStats struct {
	TotalFillers int
	AvgWPM       float64
	Sentences    int
	// TopFiller is the most frequent filler; empty when none were detected.
	TopFiller string
}

// Assessment is the qualitative outcome of a session.
type Assessment struct {
	ConfidenceScore int
	Strengths       []string
	Improvements    []string
}

const (
	baseConfidence      = 60
	fillerPenaltyEach   = 3
	fillerPenaltyMax    = 40
	idealPaceBonus      = 10
	cleanSpeechMax      = 5
	goodLengthMin       = 10
	fillerHeavyMin      = 8
	fastSessionWPM      = 170
	slowSessionWPM      = 100
	fallbackStrength    = "Keep practicing!"
	fallbackImprovement = "You're doing great!"
)

// Confidence returns the 0–100 confidence score for the given totals.
func Confidence(totalFillers int, avgWPM float64) int {
	score := baseConfidence - min(totalFillers*fillerPenaltyEach, fillerPenaltyMax)
	if IdealPace(avgWPM) {
		score += idealPaceBonus
	}
	return max(0, min(score, 100))
}

// Assess computes the confidence score plus strengths and improvements. Both
// lists always contain at least one entry.
func Assess(s SessionStats) Assessment {
	a := Assessment{ConfidenceScore: Confidence(s.TotalFillers, s.AvgWPM)}

	if s.TotalFillers <= cleanSpeechMax {
		a.Strengths = append(a.Strengths, "Clean and articulate speech")
	}
	if IdealPace(s.AvgWPM) {
		a.Strengths = append(a.Strengths, "Perfect pacing")
	}
	if s.Sentences >= goodLengthMin {
		a.Strengths = append(a.Strengths, "Good session length")
	}
	if len(a.Strengths) == 0 {
		a.Strengths = []string{fallbackStrength}
	}

	if s.TotalFillers > fillerHeavyMin {
		top := s.TopFiller
		if top == "" {
			top = "fillers"
		}
		a.Improvements = append(a.Improvements, fmt.Sprintf("Reduce '%s' usage", top))
	}
	if s.AvgWPM > fastSessionWPM {
		a.Improvements = append(a.Improvements, "Slow down your pace")
	} else if s.AvgWPM < slowSessionWPM {
		a.Improvements = append(a.Improvements, "Increase energy and pace")
	}
	if len(a.Improvements) == 0 {
		a.Improvements = []string{fallbackImprovement}
	}

	return a
}
