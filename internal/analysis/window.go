package analysis

import "time"

// WindowMetrics describes one checkpoint window. It is computed, handed to the
// feedback policy and folded into session totals, then discarded.
type WindowMetrics struct {
	WordCount   int
	WPM         float64
	FillerCount int
	Fillers     []string
	WeakCount   int
	PowerCount  int
	Elapsed     time.Duration
}

// Measure computes the metrics of a window whose concatenated text is text and
// which lasted elapsed wall-clock time. A zero or negative elapsed time yields
// a WPM of 0.
func Measure(text string, elapsed time.Duration, lex *Lexicon) WindowMetrics {
	if lex == nil {
		lex = DefaultLexicon()
	}

	tokens := Tokenize(text)
	fillers := lex.detectFillers(tokens)

	m := WindowMetrics{
		WordCount:   len(tokens),
		FillerCount: fillers.Count,
		Fillers:     fillers.Instances,
		WeakCount:   lex.WeakCount(tokens),
		PowerCount:  lex.PowerCount(tokens),
		Elapsed:     elapsed,
	}
	if elapsed > 0 {
		m.WPM = float64(m.WordCount) / elapsed.Minutes()
	}
	return m
}
