package coach

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/echomind/coach-gateway/internal/resilience"
	"github.com/echomind/coach-gateway/internal/session"
)

type fakeBackend struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return f.answers[len(f.answers)-1], nil
}

const validAnswer = `{
  "content_quality_score": 7,
  "content_feedback": "Solid examples.",
  "communication_score": 8.5,
  "communication_feedback": "Clear delivery.",
  "key_strengths": ["structure"],
  "improvement_areas": ["metrics"],
  "specific_suggestions": ["quantify results"],
  "missing_elements": ["impact numbers"],
  "overall_impression": "Good practice run."
}`

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
}

func testSummary() session.Summary {
	return session.Summary{
		SessionID:       "s-1",
		DurationSeconds: 90,
		TotalWords:      180,
		FillerCount:     3,
		FillerDetails:   session.NewFillerBreakdown([]string{"um", "um", "like"}),
		AvgWPM:          120,
		FullTranscript:  "I led the migration to the new platform.",
	}
}

func TestAnalyzeParsesCritique(t *testing.T) {
	backend := &fakeBackend{answers: []string{"```json\n" + validAnswer + "\n```"}}
	c := New(backend, WithRetry(fastRetry()))

	critique, err := c.Analyze(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if critique.ContentQualityScore != 7 {
		t.Errorf("Expected content score 7, got %v", critique.ContentQualityScore)
	}
	if critique.CommunicationScore != 8.5 {
		t.Errorf("Expected communication score 8.5, got %v", critique.CommunicationScore)
	}
	if critique.OverallImpression != "Good practice run." {
		t.Errorf("Unexpected overall impression %q", critique.OverallImpression)
	}

	prompt := backend.prompts[0]
	for _, want := range []string{
		"I led the migration to the new platform.",
		"Duration: 90 seconds",
		"Total words: 180",
		"Filler count: 3",
		"Average pace: 120.0 WPM",
		`{"um": 2, "like": 1}`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestAnalyzeRetriesBackendErrors(t *testing.T) {
	backend := &fakeBackend{
		errs:    []error{errors.New("503 unavailable"), nil},
		answers: []string{"", validAnswer},
	}
	c := New(backend, WithRetry(fastRetry()))

	if _, err := c.Analyze(context.Background(), testSummary()); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("Expected 2 backend calls, got %d", backend.calls)
	}
}

func TestAnalyzeDoesNotRetryMalformedAnswer(t *testing.T) {
	backend := &fakeBackend{answers: []string{"I think the candidate did well."}}
	c := New(backend, WithRetry(fastRetry()))

	_, err := c.Analyze(context.Background(), testSummary())
	if !errors.Is(err, ErrMalformedAnswer) {
		t.Fatalf("Expected ErrMalformedAnswer, got %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("Expected 1 backend call, got %d", backend.calls)
	}
}

func TestAnalyzeMalformedAnswerKeepsCircuitClosed(t *testing.T) {
	backend := &fakeBackend{answers: []string{"not json at all"}}
	breaker := resilience.NewCircuitBreaker("coach-malformed", 1, time.Hour)
	c := New(backend, WithRetry(fastRetry()), WithCircuitBreaker(breaker))

	for i := 0; i < 3; i++ {
		if _, err := c.Analyze(context.Background(), testSummary()); !errors.Is(err, ErrMalformedAnswer) {
			t.Fatalf("Analyze #%d: expected ErrMalformedAnswer, got %v", i+1, err)
		}
	}
	if state := breaker.GetState(); state != resilience.StateClosed {
		t.Errorf("Expected closed circuit after malformed answers, got %s", state)
	}
	if err := c.Ready(); err != nil {
		t.Errorf("Expected coach to stay ready, got %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("Expected 3 backend calls, got %d", backend.calls)
	}
}

func TestAnalyzeOpenCircuit(t *testing.T) {
	backend := &fakeBackend{answers: []string{validAnswer}}
	breaker := resilience.NewCircuitBreaker("coach-test", 1, time.Hour)
	breaker.RecordResult(false)

	c := New(backend, WithRetry(fastRetry()), WithCircuitBreaker(breaker))
	_, err := c.Analyze(context.Background(), testSummary())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if backend.calls != 0 {
		t.Errorf("Expected no backend calls with open circuit, got %d", backend.calls)
	}
}

func TestDisabledCoach(t *testing.T) {
	c := New(nil)
	if c.Enabled() {
		t.Error("Expected coach without backend to be disabled")
	}
	if c.Backend() != "disabled" {
		t.Errorf("Expected backend name 'disabled', got %q", c.Backend())
	}
	if _, err := c.Analyze(context.Background(), testSummary()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestParseCritique(t *testing.T) {
	tests := []struct {
		name          string
		answer        string
		wantErr       bool
		wantContent   float64
		wantComm      float64
		wantStrengths int
	}{
		{name: "plain json", answer: validAnswer, wantContent: 7, wantComm: 8.5, wantStrengths: 1},
		{name: "json fence", answer: "```json\n" + validAnswer + "\n```", wantContent: 7, wantComm: 8.5, wantStrengths: 1},
		{name: "bare fence", answer: "```\n" + validAnswer + "\n```", wantContent: 7, wantComm: 8.5, wantStrengths: 1},
		{name: "scores clamped", answer: `{"content_quality_score": 14, "communication_score": -3}`, wantContent: 10, wantComm: 0},
		{name: "empty", answer: "  ", wantErr: true},
		{name: "prose", answer: "Great job overall!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCritique(tt.answer)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCritique failed: %v", err)
			}
			if c.ContentQualityScore != tt.wantContent {
				t.Errorf("Expected content score %v, got %v", tt.wantContent, c.ContentQualityScore)
			}
			if c.CommunicationScore != tt.wantComm {
				t.Errorf("Expected communication score %v, got %v", tt.wantComm, c.CommunicationScore)
			}
			if len(c.KeyStrengths) != tt.wantStrengths {
				t.Errorf("Expected %d strengths, got %d", tt.wantStrengths, len(c.KeyStrengths))
			}
			if c.MissingElements == nil {
				t.Error("Expected missing elements to be non-nil")
			}
		})
	}
}

func TestBuildPromptWithoutFillers(t *testing.T) {
	prompt := BuildPrompt(session.Summary{FullTranscript: "hello"})
	if !strings.Contains(prompt, "Filler details: none") {
		t.Error("Expected prompt to report no filler details")
	}
}

func TestReady(t *testing.T) {
	if err := New(nil).Ready(); err != nil {
		t.Errorf("Expected disabled coach to be ready, got %v", err)
	}

	breaker := resilience.NewCircuitBreaker("coach-ready", 1, time.Hour)
	c := New(&fakeBackend{answers: []string{validAnswer}}, WithCircuitBreaker(breaker))
	if err := c.Ready(); err != nil {
		t.Errorf("Expected ready coach, got %v", err)
	}

	breaker.RecordResult(false)
	if err := c.Ready(); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}
