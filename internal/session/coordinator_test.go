package session

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/echomind/coach-gateway/internal/analysis"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCoordinator(clock *fakeClock, opts ...Option) *Coordinator {
	base := []Option{
		WithClock(clock.Now),
		WithPolicy(analysis.NewPolicy(analysis.FirstChooser())),
	}
	return NewCoordinator("test-session", append(base, opts...)...)
}

func TestCoordinator_CheckpointsEveryFourthFragment(t *testing.T) {
	c := newTestCoordinator(newFakeClock())

	for i := 1; i <= 12; i++ {
		_, ok := c.Ingest(fmt.Sprintf("fragment number %d", i))
		want := i%4 == 0
		if ok != want {
			t.Errorf("Ingest #%d returned feedback = %v, want %v", i, ok, want)
		}
	}
	if got := c.Fragments(); got != 12 {
		t.Errorf("Fragments() = %d, want 12", got)
	}
	if got := len(c.Pending()); got != 0 {
		t.Errorf("Pending() has %d fragments, want 0", got)
	}
}

func TestCoordinator_ConcurrentIngest(t *testing.T) {
	const n = 400

	var checkpoints []Checkpoint
	c := newTestCoordinator(newFakeClock(), WithCheckpointObserver(func(cp Checkpoint) {
		checkpoints = append(checkpoints, cp)
	}))

	var fired atomic.Int64
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Ingest(fmt.Sprintf("um hello there %d", i)); ok {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := fired.Load(); got != n/DefaultCheckpointInterval {
		t.Errorf("feedback fired %d times, want %d", got, n/DefaultCheckpointInterval)
	}
	if got := len(c.Sentences()); got != n {
		t.Errorf("len(Sentences()) = %d, want %d", got, n)
	}
	if got := c.Pending(); len(got) != 0 {
		t.Errorf("Pending() = %v, want empty", got)
	}

	seen := make(map[string]bool, n)
	for i, cp := range checkpoints {
		if cp.Index != i+1 {
			t.Errorf("checkpoint %d has Index %d", i, cp.Index)
		}
		if len(cp.Fragments) != DefaultCheckpointInterval {
			t.Errorf("checkpoint %d has %d fragments, want %d", cp.Index, len(cp.Fragments), DefaultCheckpointInterval)
		}
		for _, f := range cp.Fragments {
			if seen[f] {
				t.Errorf("fragment %q analysed in more than one window", f)
			}
			seen[f] = true
		}
	}
	if len(seen) != n {
		t.Errorf("windows covered %d fragments, want %d", len(seen), n)
	}
}

func TestCoordinator_CheckpointInterval(t *testing.T) {
	c := newTestCoordinator(newFakeClock(), WithCheckpointInterval(2), WithCheckpointInterval(0))

	var fired []int
	for i := 1; i <= 6; i++ {
		if _, ok := c.Ingest("hello there"); ok {
			fired = append(fired, i)
		}
	}
	if want := []int{2, 4, 6}; !slices.Equal(fired, want) {
		t.Errorf("checkpoints fired at %v, want %v", fired, want)
	}
}

func TestCoordinator_BlankFragmentsIgnored(t *testing.T) {
	c := newTestCoordinator(newFakeClock())

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, ok := c.Ingest(text); ok {
			t.Errorf("Ingest(%q) produced feedback", text)
		}
	}
	if got := c.Fragments(); got != 0 {
		t.Errorf("Fragments() = %d, want 0", got)
	}
}

func TestCoordinator_CheckpointMetrics(t *testing.T) {
	clock := newFakeClock()
	var checkpoints []Checkpoint
	c := newTestCoordinator(clock, WithCheckpointObserver(func(cp Checkpoint) {
		checkpoints = append(checkpoints, cp)
	}))

	fragments := []string{
		"We shipped the new billing system.",
		"The rollout took three weeks.",
		"Customers saw faster invoices immediately.",
		"Support tickets dropped by half.",
	}
	for _, f := range fragments {
		clock.Advance(3 * time.Second)
		c.Ingest(f)
	}

	if len(checkpoints) != 1 {
		t.Fatalf("observed %d checkpoints, want 1", len(checkpoints))
	}
	cp := checkpoints[0]
	if cp.Index != 1 {
		t.Errorf("Index = %d, want 1", cp.Index)
	}
	if !slices.Equal(cp.Fragments, fragments) {
		t.Errorf("Fragments = %v", cp.Fragments)
	}
	if cp.Metrics.WordCount != 21 {
		t.Errorf("WordCount = %d, want 21", cp.Metrics.WordCount)
	}
	if cp.Metrics.WPM != 105 {
		t.Errorf("WPM = %v, want 105", cp.Metrics.WPM)
	}
	if cp.Feedback.Tier != analysis.TierClarity {
		t.Errorf("Tier = %v, want %v", cp.Feedback.Tier, analysis.TierClarity)
	}
	if cp.Feedback.Message != "Excellent clarity - minimal fillers!" {
		t.Errorf("Message = %q", cp.Feedback.Message)
	}
}

func TestCoordinator_WindowTimerResetsAtCheckpoint(t *testing.T) {
	clock := newFakeClock()
	var wpms []float64
	c := newTestCoordinator(clock, WithCheckpointObserver(func(cp Checkpoint) {
		wpms = append(wpms, cp.Metrics.WPM)
	}))

	// First window: 20 words over 60s.
	for range 4 {
		c.Ingest("one two three four five")
	}
	clock.Advance(time.Minute)
	// Second window: 20 words over 10s.
	for i := range 4 {
		if i == 0 {
			clock.Advance(10 * time.Second)
		}
		c.Ingest("one two three four five")
	}

	if len(wpms) != 2 {
		t.Fatalf("got %d checkpoints, want 2", len(wpms))
	}
	if wpms[0] != 0 {
		t.Errorf("first window WPM = %v, want 0 (no time elapsed)", wpms[0])
	}
	if want := 20 / (70.0 / 60); math.Abs(wpms[1]-want) > 1e-9 {
		t.Errorf("second window WPM = %v, want %v", wpms[1], want)
	}
}

func TestCoordinator_PauseDropsFragments(t *testing.T) {
	c := newTestCoordinator(newFakeClock())

	c.Ingest("I designed the cache layer.")
	before := c.Sentences()

	if !c.Pause() {
		t.Fatal("Pause() = false on active session")
	}
	if c.Pause() {
		t.Error("second Pause() should be a no-op")
	}
	if _, ok := c.Ingest("this should be dropped"); ok {
		t.Error("paused Ingest produced feedback")
	}
	if !c.Resume() {
		t.Fatal("Resume() = false on paused session")
	}
	if c.Resume() {
		t.Error("second Resume() should be a no-op")
	}

	if got := c.Sentences(); !slices.Equal(got, before) {
		t.Errorf("Sentences() = %v, want %v", got, before)
	}
	s, err := c.End()
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if s.TotalWords != 5 || s.TotalSentences != 1 {
		t.Errorf("summary words/sentences = %d/%d, want 5/1", s.TotalWords, s.TotalSentences)
	}
}

func TestCoordinator_EndTwice(t *testing.T) {
	c := newTestCoordinator(newFakeClock())
	c.Ingest("hello")

	if _, err := c.End(); err != nil {
		t.Fatalf("first End() error = %v", err)
	}
	s, err := c.End()
	if !errors.Is(err, ErrSessionEnded) {
		t.Errorf("second End() error = %v, want ErrSessionEnded", err)
	}
	if s.TotalSentences != 0 || s.FullTranscript != "" {
		t.Errorf("second End() returned a summary: %+v", s)
	}

	if _, ok := c.Ingest("after end"); ok {
		t.Error("Ingest after End produced feedback")
	}
	if c.Pause() || c.Resume() {
		t.Error("Pause/Resume after End should be no-ops")
	}
	if c.State() != StateEnded {
		t.Errorf("State() = %v, want ended", c.State())
	}
}

func TestCoordinator_EndWhilePaused(t *testing.T) {
	c := newTestCoordinator(newFakeClock())
	c.Ingest("one")
	c.Pause()
	if _, err := c.End(); err != nil {
		t.Fatalf("End() from paused error = %v", err)
	}
}

func TestCoordinator_RoundTrip(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*31))
		var checkpointed []string
		c := newTestCoordinator(newFakeClock(), WithCheckpointObserver(func(cp Checkpoint) {
			checkpointed = append(checkpointed, cp.Fragments...)
		}))

		for i := range 60 {
			switch rng.IntN(6) {
			case 0:
				c.Pause()
			case 1:
				c.Resume()
			case 2:
				c.Ingest("  ")
			default:
				c.Ingest(fmt.Sprintf("fragment %d", i))
			}
		}

		got := append(slices.Clone(checkpointed), c.Pending()...)
		if want := c.Sentences(); !slices.Equal(got, want) {
			t.Fatalf("seed %d: checkpointed+pending = %v, want %v", seed, got, want)
		}
	}
}

func TestCoordinator_Summary(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(clock)

	for _, f := range []string{
		"Um so I led the team.",
		"You know we built it.",
		"Um it was like fast.",
		"I think we delivered.",
		"Right.",
	} {
		c.Ingest(f)
	}
	clock.Advance(60 * time.Second)

	s, err := c.End()
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if s.SessionID != "test-session" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.DurationSeconds != 60 {
		t.Errorf("DurationSeconds = %d, want 60", s.DurationSeconds)
	}
	if s.TotalWords != 21 {
		t.Errorf("TotalWords = %d, want 21", s.TotalWords)
	}
	if s.TotalSentences != 5 {
		t.Errorf("TotalSentences = %d, want 5", s.TotalSentences)
	}
	// The trailing partial window is not analysed, so "right" is not counted.
	if s.FillerCount != 5 {
		t.Errorf("FillerCount = %d, want 5", s.FillerCount)
	}
	wantDetails := FillerBreakdown{{"um", 2}, {"you know", 1}, {"so", 1}, {"like", 1}}
	if !slices.Equal(s.FillerDetails, wantDetails) {
		t.Errorf("FillerDetails = %v, want %v", s.FillerDetails, wantDetails)
	}
	if s.AvgWPM != 21 {
		t.Errorf("AvgWPM = %v, want 21", s.AvgWPM)
	}
	if s.ConfidenceScore != 45 {
		t.Errorf("ConfidenceScore = %d, want 45", s.ConfidenceScore)
	}
	if !slices.Equal(s.Strengths, []string{"Clean and articulate speech"}) {
		t.Errorf("Strengths = %v", s.Strengths)
	}
	if !slices.Equal(s.Improvements, []string{"Increase energy and pace"}) {
		t.Errorf("Improvements = %v", s.Improvements)
	}
	want := "Um so I led the team. You know we built it. Um it was like fast. I think we delivered. Right."
	if s.FullTranscript != want {
		t.Errorf("FullTranscript = %q", s.FullTranscript)
	}
}

func TestCoordinator_EmptySessionSummary(t *testing.T) {
	c := newTestCoordinator(newFakeClock())
	s, err := c.End()
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if s.DurationSeconds != 0 || s.AvgWPM != 0 || s.TotalWords != 0 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if s.FillerDetails == nil {
		t.Error("FillerDetails should be an empty table, not nil")
	}
	if s.ConfidenceScore != 60 {
		t.Errorf("ConfidenceScore = %d, want 60", s.ConfidenceScore)
	}
}
