package recorder

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*SQLiteRecorder)(nil)
	_ Recorder = (*PostgresRecorder)(nil)
)

func TestSQLiteRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	rec, err := NewSQLiteRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.RecordFetch(&FetchEvent{
		Strategy: "session-http", Outcome: "FAILED", DurationMs: 1200, Error: "challenge page detected",
	}))
	require.NoError(t, rec.RecordFetch(&FetchEvent{
		Strategy: "static-fallback", Outcome: "OK", Items: 6,
	}))
	require.NoError(t, rec.RecordLookup(&LookupEvent{
		Query: "poton", Matched: "Red Potion", Tier: "fuzzy", Score: 80, Found: true,
	}))
	require.NoError(t, rec.Close())

	// Reopening must not fail on existing tables.
	rec, err = NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var fetches int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM fetch_events`).Scan(&fetches))
	assert.Equal(t, 2, fetches)

	var strategy string
	var items int
	require.NoError(t, db.QueryRow(`SELECT strategy, items FROM fetch_events WHERE outcome = 'OK'`).Scan(&strategy, &items))
	assert.Equal(t, "static-fallback", strategy)
	assert.Equal(t, 6, items)

	var matched, tier string
	var found bool
	require.NoError(t, db.QueryRow(`SELECT matched, tier, found FROM lookup_events`).Scan(&matched, &tier, &found))
	assert.Equal(t, "Red Potion", matched)
	assert.Equal(t, "fuzzy", tier)
	assert.True(t, found)
}

func TestSQLiteRecorder_BadPath(t *testing.T) {
	_, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	assert.Error(t, err)
}

func TestPostgresRecorder(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := NewPostgresRecorder(ctx, dsn)
	require.NoError(t, err)
	defer rec.Close()

	assert.NoError(t, rec.RecordFetch(&FetchEvent{Strategy: "session-http", Outcome: "OK", Items: 3}))
	assert.NoError(t, rec.RecordLookup(&LookupEvent{Query: "leaf", Found: false}))
}
