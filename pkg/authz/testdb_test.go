package authz

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// newTestDB opens an in-memory sqlite database with the grants table. The
// single-connection limit keeps every statement on the same :memory: database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT NOT NULL,
			domain TEXT NOT NULL,
			object TEXT NOT NULL,
			UNIQUE (subject, domain, object)
		)
	`)
	require.NoError(t, err)

	return db
}

// newTestEnforcer wires the default model over a fresh in-memory store.
func newTestEnforcer(t *testing.T, opts ...Option) *Enforcer {
	t.Helper()

	model, err := DefaultModel()
	require.NoError(t, err)
	e, err := NewEnforcer(model, NewStore(newTestDB(t)), opts...)
	require.NoError(t, err)
	return e
}
