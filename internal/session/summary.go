package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/echomind/coach-gateway/internal/analysis"
)

// FillerCount is one row of the filler frequency table.
type FillerCount struct {
	Filler string
	Count  int
}

// FillerBreakdown is a filler frequency table ordered by descending count.
// Ties keep the order in which the fillers were first detected. It encodes as
// a JSON object whose keys follow that order.
type FillerBreakdown []FillerCount

// NewFillerBreakdown tallies instances.
func NewFillerBreakdown(instances []string) FillerBreakdown {
	index := make(map[string]int)
	var b FillerBreakdown
	for _, f := range instances {
		if i, ok := index[f]; ok {
			b[i].Count++
			continue
		}
		index[f] = len(b)
		b = append(b, FillerCount{Filler: f, Count: 1})
	}

	slices.SortStableFunc(b, func(x, y FillerCount) int {
		return y.Count - x.Count
	})
	return b
}

// Total returns the sum of all counts.
func (b FillerBreakdown) Total() int {
	total := 0
	for _, fc := range b {
		total += fc.Count
	}
	return total
}

// Top returns the most frequent filler, or "" when the table is empty.
func (b FillerBreakdown) Top() string {
	if len(b) == 0 {
		return ""
	}
	return b[0].Filler
}

// MarshalJSON implements json.Marshaler.
func (b FillerBreakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fc := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fc.Filler)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", fc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving key order.
func (b *FillerBreakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("filler breakdown: expected object, got %v", tok)
	}

	out := FillerBreakdown{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("filler breakdown: unexpected key %v", keyTok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("filler breakdown %q: %w", key, err)
		}
		out = append(out, FillerCount{Filler: key, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}

// Summary is the terminal report of a session.
type Summary struct {
	SessionID string    `json:"-"`
	StartedAt time.Time `json:"-"`
	EndedAt   time.Time `json:"-"`

	DurationSeconds int             `json:"duration_seconds"`
	TotalWords      int             `json:"total_words"`
	TotalSentences  int             `json:"total_sentences"`
	FillerCount     int             `json:"filler_count"`
	FillerDetails   FillerBreakdown `json:"filler_details"`
	AvgWPM          float64         `json:"avg_wpm"`
	ConfidenceScore int             `json:"confidence_score"`
	Strengths       []string        `json:"strengths"`
	Improvements    []string        `json:"improvements"`
	FullTranscript  string          `json:"full_transcript"`
}

func summarize(id string, started, ended time.Time, words int, sentences, fillers []string) Summary {
	duration := int(ended.Sub(started).Seconds())

	var wpm float64
	if duration > 0 {
		wpm = float64(words) / (float64(duration) / 60)
	}

	details := NewFillerBreakdown(fillers)
	if details == nil {
		details = FillerBreakdown{}
	}
	total := details.Total()

	assessment := analysis.Assess(analysis.SessionStats{
		TotalFillers: total,
		AvgWPM:       wpm,
		Sentences:    len(sentences),
		TopFiller:    details.Top(),
	})

	return Summary{
		SessionID:       id,
		StartedAt:       started,
		EndedAt:         ended,
		DurationSeconds: duration,
		TotalWords:      words,
		TotalSentences:  len(sentences),
		FillerCount:     total,
		FillerDetails:   details,
		AvgWPM:          math.Round(wpm*10) / 10,
		ConfidenceScore: assessment.ConfidenceScore,
		Strengths:       assessment.Strengths,
		Improvements:    assessment.Improvements,
		FullTranscript:  strings.Join(sentences, " "),
	}
}
