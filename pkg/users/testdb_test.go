package users

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// newTestDB opens an in-memory sqlite database with the users schema. The
// single-connection limit keeps every statement on the same :memory: database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT NOT NULL,
			nick_name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			head_img TEXT NOT NULL DEFAULT '',
			open_id TEXT NOT NULL DEFAULT '',
			register_type TEXT NOT NULL DEFAULT 'account',
			is_delete BOOLEAN NOT NULL DEFAULT FALSE,
			create_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			update_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)

	return db
}
