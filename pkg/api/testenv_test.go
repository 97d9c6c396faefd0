package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/groups"
	"github.com/wardenhq/warden/pkg/roles"
	"github.com/wardenhq/warden/pkg/users"
)

// testEnv wires real services over an in-memory database behind the full
// router, so handler tests exercise the same middleware chain production
// sees.
type testEnv struct {
	db       *sql.DB
	server   *Server
	handler  http.Handler
	users    *users.Service
	roles    *roles.Service
	groups   *groups.Service
	catalog  *catalog.Service
	enforcer *authz.Enforcer
	tokens   *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
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
		);

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

		CREATE TABLE groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			note TEXT NOT NULL DEFAULT '',
			create_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE group_roles (
			group_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			create_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, role_id)
		);

		CREATE TABLE user_groups (
			user_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			create_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, group_id)
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

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		users:    users.NewService(db),
		roles:    roles.NewService(db, enforcer),
		groups:   groups.NewService(db, enforcer),
		catalog:  catalog.NewService(enforcer),
		enforcer: enforcer,
		tokens:   tokens,
	}
	env.server = NewServer(Deps{
		Users:    env.users,
		Roles:    env.roles,
		Groups:   env.groups,
		Catalog:  env.catalog,
		Enforcer: enforcer,
		Tokens:   tokens,
	})
	env.handler = env.server.Handler()
	return env
}

// adminToken creates an account holding every management permission and
// returns its session token.
func (env *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	err := env.users.Create(ctx, []users.NewUser{
		{UserName: "admin", Password: "admin-password-1"},
	})
	require.NoError(t, err)
	admin, err := env.users.GetByUserName(ctx, "admin")
	require.NoError(t, err)

	for _, tag := range []string{PermManageUser, PermManageRole, PermManageGroup, PermManageCatalog, PermManageAuthz} {
		_, err := env.enforcer.Grant(ctx, authz.UserKey(admin.ID), authz.DomainAPI, tag)
		require.NoError(t, err)
	}

	token, err := env.tokens.Issue(admin.ID, admin.UserName)
	require.NoError(t, err)
	return token
}

// do runs one request through the router and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// decode unmarshals a recorded JSON body.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}
