// Package store persists coaching sessions. Two implementations are provided:
// SQLite for single-node deployments and PostgreSQL for shared ones.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/echomind/coach-gateway/internal/session"
)

var (
	// ErrSessionExists is returned when creating a session whose id is taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when no row matches a session id.
	ErrSessionNotFound = errors.New("session not found")
)

// Session row statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Record is one stored session.
type Record struct {
	SessionID string     `json:"session_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `json:"status"`

	// Summary is nil while the session is active.
	Summary *session.Summary `json:"summary,omitempty"`

	// CoachingReport is the deep coaching critique as JSON, if one was saved.
	CoachingReport json.RawMessage `json:"coaching_report,omitempty"`
}

// Store is the persistence collaborator of the gateway.
type Store interface {
	// CreateSession records a new active session. It returns
	// ErrSessionExists if sessionID is already stored.
	CreateSession(ctx context.Context, sessionID string, startedAt time.Time) error

	// EndSession writes the final summary and marks the session completed.
	EndSession(ctx context.Context, summary session.Summary) error

	// SaveCritique attaches a deep coaching report, encoded as JSON.
	SaveCritique(ctx context.Context, sessionID string, report any) error

	// ListSessions returns every session, newest first.
	ListSessions(ctx context.Context) ([]Record, error)

	// GetSession returns one session or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (Record, error)

	Ping(ctx context.Context) error
	Close() error
}

// Compile-time interface checks.
var (
	_ Store            = (*SQLiteStore)(nil)
	_ Store            = (*PostgresStore)(nil)
	_ session.Recorder = Store(nil)
)

// Open connects to the store selected by driver and ensures its schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// summaryColumns holds the JSON-encoded columns of a summary.
type summaryColumns struct {
	fillerDetails []byte
	strengths     []byte
	improvements  []byte
}

func encodeSummary(s session.Summary) (summaryColumns, error) {
	var cols summaryColumns
	var err error

	details := s.FillerDetails
	if details == nil {
		details = session.FillerBreakdown{}
	}
	if cols.fillerDetails, err = json.Marshal(details); err != nil {
		return cols, fmt.Errorf("marshal filler_details: %w", err)
	}
	if cols.strengths, err = json.Marshal(emptySlice(s.Strengths)); err != nil {
		return cols, fmt.Errorf("marshal strengths: %w", err)
	}
	if cols.improvements, err = json.Marshal(emptySlice(s.Improvements)); err != nil {
		return cols, fmt.Errorf("marshal improvements: %w", err)
	}
	return cols, nil
}

// row is the scan target shared by both implementations.
type row struct {
	sessionID  string
	start      time.Time
	end        *time.Time
	status     string
	duration   int
	words      int
	sentences  int
	fillers    int
	wpm        float64
	confidence int
	transcript string
	summaryColumns
	report []byte
}

func (r row) record() (Record, error) {
	rec := Record{
		SessionID: r.sessionID,
		StartTime: r.start,
		EndTime:   r.end,
		Status:    r.status,
	}
	if len(r.report) > 0 {
		rec.CoachingReport = json.RawMessage(r.report)
	}
	if r.status != StatusCompleted {
		return rec, nil
	}

	s := session.Summary{
		SessionID:       r.sessionID,
		StartedAt:       r.start,
		DurationSeconds: r.duration,
		TotalWords:      r.words,
		TotalSentences:  r.sentences,
		FillerCount:     r.fillers,
		AvgWPM:          r.wpm,
		ConfidenceScore: r.confidence,
		FullTranscript:  r.transcript,
	}
	if r.end != nil {
		s.EndedAt = *r.end
	}
	if err := unmarshalColumn("filler_details", r.fillerDetails, &s.FillerDetails); err != nil {
		return Record{}, err
	}
	if err := unmarshalColumn("strengths", r.strengths, &s.Strengths); err != nil {
		return Record{}, err
	}
	if err := unmarshalColumn("improvements", r.improvements, &s.Improvements); err != nil {
		return Record{}, err
	}
	rec.Summary = &s
	return rec, nil
}

func unmarshalColumn(name string, data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
