// Package session implements the per-session coaching state machine: fragment
// ingestion, checkpoint windows, and the end-of-session summary.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/echomind/coach-gateway/internal/analysis"
)

// DefaultCheckpointInterval is the number of fragments per checkpoint window.
const DefaultCheckpointInterval = 4

var (
	// ErrSessionEnded is returned when an operation targets a session that has
	// already been ended.
	ErrSessionEnded = errors.New("session already ended")

	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPersistence marks a failure of the persistence collaborator. The
	// in-memory result of the operation is still valid when it is returned.
	ErrPersistence = errors.New("session persistence failed")
)

// State is the lifecycle state of a coaching session.
type State int

const (
	StateActive State = iota
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Checkpoint describes one completed analysis window.
type Checkpoint struct {
	// Index is 1 for the first checkpoint of the session.
	Index     int
	Fragments []string
	Metrics   analysis.WindowMetrics
	Feedback  analysis.Feedback
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCheckpointInterval sets the number of fragments per window. Values
// below 1 are ignored.
func WithCheckpointInterval(n int) Option {
	return func(c *Coordinator) {
		if n >= 1 {
			c.interval = n
		}
	}
}

// WithLexicon sets the lexicon source consulted at every checkpoint.
func WithLexicon(src analysis.LexiconSource) Option {
	return func(c *Coordinator) {
		if src != nil {
			c.lexicon = src
		}
	}
}

// WithPolicy sets the feedback policy.
func WithPolicy(p *analysis.Policy) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithCheckpointObserver registers fn to be called after every checkpoint.
// fn runs while the coordinator is locked and must not call back into it.
func WithCheckpointObserver(fn func(Checkpoint)) Option {
	return func(c *Coordinator) {
		c.observe = fn
	}
}

// Coordinator owns the state of one coaching session. All public methods are
// mutually exclusive.
type Coordinator struct {
	id string

	mu          sync.Mutex
	state       State
	sentences   []string
	window      []string
	windowStart time.Time
	started     time.Time
	words       int
	fillers     []string
	fragments   int
	checkpoints int

	interval int
	now      func() time.Time
	lexicon  analysis.LexiconSource
	policy   *analysis.Policy
	observe  func(Checkpoint)
}

// NewCoordinator creates an Active session with the given id.
func NewCoordinator(id string, opts ...Option) *Coordinator {
	c := &Coordinator{
		id:       id,
		state:    StateActive,
		interval: DefaultCheckpointInterval,
		now:      time.Now,
		lexicon:  analysis.NewStaticLexicon(nil),
		policy:   analysis.NewPolicy(nil),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.started = c.now()
	c.windowStart = c.started
	return c
}

// ID returns the session identifier.
func (c *Coordinator) ID() string { return c.id }

// StartedAt returns the creation time of the session.
func (c *Coordinator) StartedAt() time.Time { return c.started }

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ingest records a transcript fragment. It returns the checkpoint feedback
// when the fragment completes a window. Fragments that arrive while the
// session is not Active, or that are blank, are discarded.
func (c *Coordinator) Ingest(text string) (analysis.Feedback, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive || strings.TrimSpace(text) == "" {
		return analysis.Feedback{}, false
	}

	c.sentences = append(c.sentences, text)
	c.window = append(c.window, text)
	c.fragments++
	c.words += len(analysis.Tokenize(text))

	if c.fragments%c.interval != 0 {
		return analysis.Feedback{}, false
	}
	return c.checkpoint()
}

// checkpoint analyses the current window. Caller holds c.mu.
func (c *Coordinator) checkpoint() (analysis.Feedback, bool) {
	if len(c.window) == 0 {
		return analysis.Feedback{}, false
	}

	now := c.now()
	metrics := analysis.Measure(strings.Join(c.window, " "), now.Sub(c.windowStart), c.lexicon.Lexicon())
	c.fillers = append(c.fillers, metrics.Fillers...)
	fb := c.policy.Evaluate(metrics)

	c.checkpoints++
	cp := Checkpoint{
		Index:     c.checkpoints,
		Fragments: c.window,
		Metrics:   metrics,
		Feedback:  fb,
	}

	c.window = nil
	c.windowStart = now

	if c.observe != nil {
		c.observe(cp)
	}
	return fb, true
}

// Pause moves an Active session to Paused. It reports whether the state
// changed.
func (c *Coordinator) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return false
	}
	c.state = StatePaused
	return true
}

// Resume moves a Paused session back to Active. It reports whether the state
// changed.
func (c *Coordinator) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return false
	}
	c.state = StateActive
	return true
}

// End terminates the session and returns its summary. Only the first call
// succeeds; later calls return ErrSessionEnded. A partially filled window is
// not analysed.
func (c *Coordinator) End() (Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateEnded {
		return Summary{}, ErrSessionEnded
	}
	c.state = StateEnded

	ended := c.now()
	s := summarize(c.id, c.started, ended, c.words, c.sentences, c.fillers)

	c.window = nil
	return s, nil
}

// Sentences returns a copy of every accepted fragment in arrival order.
func (c *Coordinator) Sentences() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sentences...)
}

// Pending returns a copy of the fragments not yet folded into a checkpoint.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.window...)
}

// Fragments returns how many fragments have been accepted.
func (c *Coordinator) Fragments() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fragments
}
