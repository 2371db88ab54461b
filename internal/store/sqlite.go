package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/echomind/coach-gateway/internal/session"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout keeps sub-second precision and sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT UNIQUE NOT NULL,
  start_time TEXT NOT NULL,
  end_time TEXT,
  duration_seconds INTEGER,
  total_words INTEGER DEFAULT 0,
  total_sentences INTEGER DEFAULT 0,
  filler_count INTEGER DEFAULT 0,
  filler_details TEXT,
  avg_wpm REAL DEFAULT 0,
  confidence_score INTEGER DEFAULT 0,
  strengths TEXT,
  improvements TEXT,
  full_transcript TEXT,
  coaching_report TEXT,
  status TEXT NOT NULL DEFAULT 'active'
);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);
`

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// CreateSession implements Store.
func (s *SQLiteStore) CreateSession(ctx context.Context, sessionID string, startedAt time.Time) error {
	const stmt = `
INSERT INTO sessions (session_id, start_time, status)
VALUES (?, ?, ?)
ON CONFLICT(session_id) DO NOTHING;
`
	res, err := s.db.ExecContext(ctx, stmt, sessionID, formatSQLiteTime(startedAt), StatusActive)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return requireRow(res, fmt.Errorf("%w: %s", ErrSessionExists, sessionID))
}

// EndSession implements Store.
func (s *SQLiteStore) EndSession(ctx context.Context, summary session.Summary) error {
	cols, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	const stmt = `
UPDATE sessions SET
  end_time = ?,
  duration_seconds = ?,
  total_words = ?,
  total_sentences = ?,
  filler_count = ?,
  filler_details = ?,
  avg_wpm = ?,
  confidence_score = ?,
  strengths = ?,
  improvements = ?,
  full_transcript = ?,
  status = ?
WHERE session_id = ?;
`
	endedAt := summary.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, stmt,
		formatSQLiteTime(endedAt),
		summary.DurationSeconds,
		summary.TotalWords,
		summary.TotalSentences,
		summary.FillerCount,
		string(cols.fillerDetails),
		summary.AvgWPM,
		summary.ConfidenceScore,
		string(cols.strengths),
		string(cols.improvements),
		summary.FullTranscript,
		StatusCompleted,
		summary.SessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return requireRow(res, fmt.Errorf("%w: %s", ErrSessionNotFound, summary.SessionID))
}

// SaveCritique implements Store.
func (s *SQLiteStore) SaveCritique(ctx context.Context, sessionID string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal coaching report: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET coaching_report = ? WHERE session_id = ?;`,
		string(data), sessionID)
	if err != nil {
		return fmt.Errorf("save coaching report: %w", err)
	}
	return requireRow(res, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID))
}

const sqliteSelect = `
SELECT session_id, start_time, end_time, status,
  COALESCE(duration_seconds, 0), COALESCE(total_words, 0), COALESCE(total_sentences, 0),
  COALESCE(filler_count, 0), filler_details, COALESCE(avg_wpm, 0), COALESCE(confidence_score, 0),
  strengths, improvements, COALESCE(full_transcript, ''), coaching_report
FROM sessions`

// ListSessions implements Store.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY start_time DESC, id DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// GetSession implements Store.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (Record, error) {
	rec, err := scanSQLite(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE session_id = ?;`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return rec, err
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scanner) (Record, error) {
	var (
		r                          row
		start                      string
		end                        sql.NullString
		details, strengths, improv sql.NullString
		report                     sql.NullString
	)
	err := sc.Scan(&r.sessionID, &start, &end, &r.status,
		&r.duration, &r.words, &r.sentences,
		&r.fillers, &details, &r.wpm, &r.confidence,
		&strengths, &improv, &r.transcript, &report)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan session: %w", err)
	}

	if r.start, err = time.Parse(sqliteTimeLayout, start); err != nil {
		return Record{}, fmt.Errorf("parse start_time: %w", err)
	}
	if end.Valid {
		t, err := time.Parse(sqliteTimeLayout, end.String)
		if err != nil {
			return Record{}, fmt.Errorf("parse end_time: %w", err)
		}
		r.end = &t
	}
	r.fillerDetails = []byte(details.String)
	r.strengths = []byte(strengths.String)
	r.improvements = []byte(improv.String)
	r.report = []byte(report.String)
	return r.record()
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func requireRow(res sql.Result, notAffected error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notAffected
	}
	return nil
}
