package roles

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/authz"
)

// newTestEnv opens an in-memory sqlite database with the roles schema and the
// grants table, and wires a service through a real enforcer.
func newTestEnv(t *testing.T) (*Service, *authz.Enforcer) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			note TEXT NOT NULL DEFAULT '',
			is_preset BOOLEAN NOT NULL DEFAULT FALSE,
			create_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE user_roles (
			user_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			create_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, role_id)
		);

		CREATE TABLE grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT NOT NULL,
			domain TEXT NOT NULL,
			object TEXT NOT NULL,
			UNIQUE (subject, domain, object)
		);
	`)
	require.NoError(t, err)

	model, err := authz.DefaultModel()
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer(model, authz.NewStore(db))
	require.NoError(t, err)

	return NewService(db, enforcer), enforcer
}

// markPreset flips a role's preset flag directly; presets normally ship with
// seed data.
func markPreset(t *testing.T, s *Service, roleID int64) {
	t.Helper()
	_, err := s.db.Exec("UPDATE roles SET is_preset = TRUE WHERE id = $1", roleID)
	require.NoError(t, err)
}
