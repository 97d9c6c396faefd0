package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/groups"
	"github.com/wardenhq/warden/pkg/users"
)

func TestGroupCreateWithInitialRoles(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	role, err := env.roles.Create(ctx, "publisher", "")
	require.NoError(t, err)

	rec := env.do(t, "POST", "/groups", token, map[string]interface{}{
		"name":    "newsroom",
		"roleIds": []int64{role.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var group groups.Group
	decode(t, rec, &group)

	rec = env.do(t, "GET", "/groups/"+itoa(group.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Group   groups.Group `json:"group"`
		RoleIDs []int64      `json:"roleIds"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, "newsroom", detail.Group.Name)
	assert.Equal(t, []int64{role.ID}, detail.RoleIDs)
}

func TestGroupMembershipGrantsPermissionThroughChain(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	role, err := env.roles.Create(ctx, "publisher", "")
	require.NoError(t, err)
	_, err = env.roles.GrantPermission(ctx, role.ID, authz.DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)

	group, err := env.groups.Create(ctx, "newsroom", "", []int64{role.ID})
	require.NoError(t, err)

	require.NoError(t, env.users.Create(ctx, []users.NewUser{
		{UserName: "sam", Password: "sam-password-123"},
	}))
	sam, err := env.users.GetByUserName(ctx, "sam")
	require.NoError(t, err)

	rec := env.do(t, "POST", "/groups/"+itoa(group.ID)+"/users/"+itoa(sam.ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	allowed, err := env.enforcer.Check(ctx, authz.UserKey(sam.ID), authz.DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	assert.True(t, allowed)

	rec = env.do(t, "DELETE", "/groups/"+itoa(group.ID)+"/users/"+itoa(sam.ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	allowed, err = env.enforcer.Check(ctx, authz.UserKey(sam.ID), authz.DomainAPI, "PUBLISH_ARTICLE")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGroupDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	role, err := env.roles.Create(ctx, "publisher", "")
	require.NoError(t, err)
	group, err := env.groups.Create(ctx, "newsroom", "", []int64{role.ID})
	require.NoError(t, err)

	require.NoError(t, env.users.Create(ctx, []users.NewUser{
		{UserName: "sam", Password: "sam-password-123"},
	}))
	sam, err := env.users.GetByUserName(ctx, "sam")
	require.NoError(t, err)
	require.NoError(t, env.groups.AddUser(ctx, group.ID, sam.ID))

	rec := env.do(t, "DELETE", "/groups/"+itoa(group.ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/groups/"+itoa(group.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	grants, err := env.enforcer.Store().GrantsForSubject(ctx, authz.GroupKey(group.ID))
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestGroupUpdateConflict(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	_, err := env.groups.Create(ctx, "newsroom", "", nil)
	require.NoError(t, err)
	other, err := env.groups.Create(ctx, "design", "", nil)
	require.NoError(t, err)

	rec := env.do(t, "PUT", "/groups/"+itoa(other.ID), token, map[string]string{
		"name": "newsroom",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
