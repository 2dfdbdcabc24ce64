package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/CTAG07/chainwalk/pkg/markov"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a file backed SQLite database with the schema in place.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err, "failed to open database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, SetupSchema(db), "failed to set up schema")
	return db
}

// setupTestStore returns a SQLStore writing with codec.
func setupTestStore(t *testing.T, codec Codec) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(setupTestDB(t), codec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fishChain builds the order 1 chain used across the store tests.
func fishChain(t *testing.T) *markov.Chain {
	t.Helper()
	corpus := [][]markov.Token{
		markov.Strings("one", "fish", "two", "fish"),
		markov.Strings("red", "fish", "blue", "fish"),
		{markov.MustToken(map[string]any{"fish": 3}), markov.StringToken(markov.BeginMarker)},
	}
	c, err := markov.New(corpus, markov.WithOrder(1))
	require.NoError(t, err)
	return c
}
