package authz

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/apperr"
)

func TestAddThenCheck(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	ok, err := e.Check(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	assert.False(t, ok, "no grant yet")

	_, err = e.Grant(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)

	ok, err = e.Check(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	assert.True(t, ok)

	// Same object in a different domain does not match.
	ok, err = e.Check(ctx, "user:1", DomainCatalog, "EDIT_ARTICLE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveThenCheck(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	_, err := e.Grant(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	_, err = e.Revoke(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)

	ok, err := e.Check(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInheritanceClosureUnlimitedDepth(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	// user:1 -> role:1 -> role:2 -> role:3, permission sits on role:3.
	_, err := e.Grant(ctx, "user:1", DomainRole, "role:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:1", DomainRole, "role:2")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:2", DomainRole, "role:3")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:3", DomainAPI, "PUBLISH")
	require.NoError(t, err)

	ok, err := e.Check(ctx, "user:1", DomainAPI, "PUBLISH")
	require.NoError(t, err)
	assert.True(t, ok)

	// Severing the middle link breaks the chain.
	_, err = e.Revoke(ctx, "role:1", DomainRole, "role:2")
	require.NoError(t, err)
	ok, err = e.Check(ctx, "user:1", DomainAPI, "PUBLISH")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupIndirection(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	// user -> group -> role -> permission.
	_, err := e.Grant(ctx, "user:1", DomainGroup, "group:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "group:1", DomainRole, "role:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:1", DomainAPI, "MANAGE_USER")
	require.NoError(t, err)

	ok, err := e.Check(ctx, "user:1", DomainAPI, "MANAGE_USER")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCycleSafety(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	// role:1 and role:2 inherit each other; the check must terminate.
	_, err := e.Grant(ctx, "user:1", DomainRole, "role:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:1", DomainRole, "role:2")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:2", DomainRole, "role:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:2", DomainAPI, "X")
	require.NoError(t, err)

	ok, err := e.Check(ctx, "user:1", DomainAPI, "X")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Check(ctx, "user:1", DomainAPI, "Y")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWildcardObject(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	_, err := e.Grant(ctx, "role:1", DomainAPI, "*")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "user:1", DomainRole, "role:1")
	require.NoError(t, err)

	for _, obj := range []string{"EDIT_ARTICLE", "MANAGE_USER", "ANYTHING"} {
		ok, err := e.Check(ctx, "user:1", DomainAPI, obj)
		require.NoError(t, err)
		assert.True(t, ok, obj)
	}
}

func TestRevokeAll(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	_, err := e.Grant(ctx, "user:1", DomainAPI, "A")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "user:1", DomainCatalog, "finance")
	require.NoError(t, err)

	n, err := e.RevokeAll(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := e.Check(ctx, "user:1", DomainAPI, "A")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListPermissionsExcludesInheritanceEdges(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	_, err := e.Grant(ctx, "user:1", DomainRole, "role:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "user:1", DomainGroup, "group:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "user:1", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "user:1", DomainCatalog, "finance")
	require.NoError(t, err)

	perms, err := e.ListPermissions(ctx, "user:1")
	require.NoError(t, err)
	require.Len(t, perms, 2)
	for _, g := range perms {
		assert.NotEqual(t, DomainRole, g.Domain)
		assert.NotEqual(t, DomainGroup, g.Domain)
	}
}

func TestCheckInvalidArguments(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	_, err := e.Check(ctx, "", DomainAPI, "X")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = e.Check(ctx, "user:1", "", "X")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = e.Check(ctx, "user:1", DomainAPI, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestMutationInvalidatesClosureCache(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	_, err := e.Grant(ctx, "user:1", DomainRole, "role:1")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:1", DomainAPI, "X")
	require.NoError(t, err)

	ok, err := e.Check(ctx, "user:1", DomainAPI, "X")
	require.NoError(t, err)
	require.True(t, ok)

	// A new inheritance edge must be visible to the next check even though
	// the closure was cached by the previous one.
	_, err = e.Grant(ctx, "user:1", DomainRole, "role:2")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:2", DomainAPI, "Y")
	require.NoError(t, err)

	ok, err = e.Check(ctx, "user:1", DomainAPI, "Y")
	require.NoError(t, err)
	assert.True(t, ok)

	// And a revoked edge must stop mattering immediately.
	_, err = e.Revoke(ctx, "user:1", DomainRole, "role:1")
	require.NoError(t, err)
	ok, err = e.Check(ctx, "user:1", DomainAPI, "X")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecisionCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_decisions_total"},
		[]string{"domain", "effect"},
	)
	e := newTestEnforcer(t, WithDecisionCounter(counter))
	ctx := context.Background()

	_, err := e.Grant(ctx, "user:1", DomainAPI, "X")
	require.NoError(t, err)

	_, err = e.Check(ctx, "user:1", DomainAPI, "X")
	require.NoError(t, err)
	_, err = e.Check(ctx, "user:1", DomainAPI, "Y")
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(counter.WithLabelValues(DomainAPI, "allow")))
	assert.Equal(t, float64(1), testutil.ToFloat64(counter.WithLabelValues(DomainAPI, "deny")))
}

func TestEndToEndEditorPublishScenario(t *testing.T) {
	e := newTestEnforcer(t)
	ctx := context.Background()

	// The editor role can edit; the publisher role can publish; the editors
	// group holds the editor role. A user in the group can edit but not
	// publish; after the group also gains publisher, the same user can
	// publish without any direct grant changing.
	_, err := e.Grant(ctx, "role:10", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "role:11", DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "group:1", DomainRole, "role:10")
	require.NoError(t, err)
	_, err = e.Grant(ctx, "user:7", DomainGroup, "group:1")
	require.NoError(t, err)

	ok, err := e.Check(ctx, "user:7", DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.Check(ctx, "user:7", DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Grant(ctx, "group:1", DomainRole, "role:11")
	require.NoError(t, err)

	ok, err = e.Check(ctx, "user:7", DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	assert.True(t, ok)
}
