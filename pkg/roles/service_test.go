package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/authz"
)

func TestCreateGetUpdate(t *testing.T) {
	svc, _ := newTestEnv(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "editor", "content editing")
	require.NoError(t, err)
	require.NotZero(t, r.ID)

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "editor", got.Name)
	assert.False(t, got.IsPreset)

	_, err = svc.Create(ctx, "editor", "")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Create(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	require.NoError(t, svc.Update(ctx, r.ID, "editor", "updated note"))
	got, err = svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated note", got.Note)

	other, err := svc.Create(ctx, "viewer", "")
	require.NoError(t, err)
	err = svc.Update(ctx, other.ID, "editor", "")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	err = svc.Update(ctx, 99999, "ghost", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListWithSearch(t *testing.T) {
	svc, _ := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"admin", "editor", "edit-assistant"} {
		_, err := svc.Create(ctx, name, "")
		require.NoError(t, err)
	}

	all, total, err := svc.List(ctx, "", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 2)

	matched, total, err := svc.List(ctx, "edit", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, matched, 2)
}

func TestDeleteCascadesToPolicyStore(t *testing.T) {
	svc, enforcer := newTestEnv(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "publisher", "")
	require.NoError(t, err)
	require.NoError(t, svc.Assign(ctx, 7, r.ID))
	_, err = svc.GrantPermission(ctx, r.ID, authz.DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)

	ok, err := enforcer.Check(ctx, authz.UserKey(7), authz.DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Delete(ctx, []int64{r.ID}))

	_, err = svc.Get(ctx, r.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Both the role's own grants and the user's inheritance edge are gone.
	ok, err = enforcer.Check(ctx, authz.UserKey(7), authz.DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := svc.RoleIDsForUser(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeleteRejectsPresets(t *testing.T) {
	svc, _ := newTestEnv(t)
	ctx := context.Background()

	preset, err := svc.Create(ctx, "superadmin", "")
	require.NoError(t, err)
	markPreset(t, svc, preset.ID)

	normal, err := svc.Create(ctx, "temp", "")
	require.NoError(t, err)

	err = svc.Delete(ctx, []int64{preset.ID, normal.ID})
	require.ErrorIs(t, err, apperr.ErrProtectedResource)

	// The batch is rejected wholesale; the normal role survives too.
	_, err = svc.Get(ctx, normal.ID)
	assert.NoError(t, err)
}

func TestSetPermissionsDelta(t *testing.T) {
	svc, enforcer := newTestEnv(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "editor", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetPermissions(ctx, r.ID, authz.DomainAPI, []string{"EDIT_ARTICLE", "VIEW_ARTICLE"}))
	require.NoError(t, svc.SetPermissions(ctx, r.ID, authz.DomainAPI, []string{"VIEW_ARTICLE", "DELETE_ARTICLE"}))

	perms, err := svc.ListPermissions(ctx, r.ID)
	require.NoError(t, err)
	objects := make([]string, 0, len(perms))
	for _, g := range perms {
		objects = append(objects, g.Object)
	}
	assert.ElementsMatch(t, []string{"VIEW_ARTICLE", "DELETE_ARTICLE"}, objects)

	ok, err := enforcer.Check(ctx, authz.RoleKey(r.ID), authz.DomainAPI, "EDIT_ARTICLE")
	require.NoError(t, err)
	assert.False(t, ok)
}
