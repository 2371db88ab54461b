package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/echomind/coach-gateway/internal/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema is the DDL applied by OpenPostgres.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id               BIGSERIAL PRIMARY KEY,
    session_id       TEXT UNIQUE NOT NULL,
    start_time       TIMESTAMPTZ NOT NULL,
    end_time         TIMESTAMPTZ,
    duration_seconds INTEGER,
    total_words      INTEGER NOT NULL DEFAULT 0,
    total_sentences  INTEGER NOT NULL DEFAULT 0,
    filler_count     INTEGER NOT NULL DEFAULT 0,
    filler_details   JSONB,
    avg_wpm          DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence_score INTEGER NOT NULL DEFAULT 0,
    strengths        JSONB,
    improvements     JSONB,
    full_transcript  TEXT,
    coaching_report  JSONB,
    status           TEXT NOT NULL DEFAULT 'active'
);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time DESC);
`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db    DB
	close func()
}

// OpenPostgres creates a connection pool for dsn, verifies it and migrates
// the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing connection or pool. The caller owns db
// and should call Migrate before use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies PostgresSchema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// CreateSession implements Store.
func (s *PostgresStore) CreateSession(ctx context.Context, sessionID string, startedAt time.Time) error {
	const query = `
		INSERT INTO sessions (session_id, start_time, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, sessionID, startedAt.UTC(), StatusActive)
	if err != nil {
		return fmt.Errorf("postgres store: create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	return nil
}

// EndSession implements Store.
func (s *PostgresStore) EndSession(ctx context.Context, summary session.Summary) error {
	cols, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	const query = `
		UPDATE sessions SET
			end_time = $1, duration_seconds = $2, total_words = $3, total_sentences = $4,
			filler_count = $5, filler_details = $6, avg_wpm = $7, confidence_score = $8,
			strengths = $9, improvements = $10, full_transcript = $11, status = $12
		WHERE session_id = $13`

	endedAt := summary.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	tag, err := s.db.Exec(ctx, query,
		endedAt.UTC(), summary.DurationSeconds, summary.TotalWords, summary.TotalSentences,
		summary.FillerCount, cols.fillerDetails, summary.AvgWPM, summary.ConfidenceScore,
		cols.strengths, cols.improvements, summary.FullTranscript, StatusCompleted,
		summary.SessionID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, summary.SessionID)
	}
	return nil
}

// SaveCritique implements Store.
func (s *PostgresStore) SaveCritique(ctx context.Context, sessionID string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("postgres store: marshal coaching report: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET coaching_report = $1 WHERE session_id = $2`, data, sessionID)
	if err != nil {
		return fmt.Errorf("postgres store: save coaching report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

const postgresSelect = `
	SELECT session_id, start_time, end_time, status,
	       COALESCE(duration_seconds, 0), total_words, total_sentences,
	       filler_count, filler_details, avg_wpm, confidence_score,
	       strengths, improvements, COALESCE(full_transcript, ''), coaching_report
	FROM sessions`

// ListSessions implements Store.
func (s *PostgresStore) ListSessions(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, postgresSelect+` ORDER BY start_time DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Record, error) {
		return scanPostgres(r)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}
	return records, nil
}

// GetSession implements Store.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (Record, error) {
	rec, err := scanPostgres(s.db.QueryRow(ctx, postgresSelect+` WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("postgres store: get session: %w", err)
	}
	return rec, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool if the store created it.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func scanPostgres(sc scanner) (Record, error) {
	var r row
	err := sc.Scan(&r.sessionID, &r.start, &r.end, &r.status,
		&r.duration, &r.words, &r.sentences,
		&r.fillers, &r.fillerDetails, &r.wpm, &r.confidence,
		&r.strengths, &r.improvements, &r.transcript, &r.report)
	if err != nil {
		return Record{}, err
	}
	return r.record()
}
