package store

import (
	"context"
	"os"
	"testing"
)

// testDSN returns the PostgreSQL DSN for integration tests, or skips the test
// if COACH_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("COACH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("COACH_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func TestPostgresStore(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.db.Exec(ctx, `TRUNCATE sessions`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseStore(t, s)
}
