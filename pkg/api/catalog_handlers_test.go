package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/users"
)

func TestCatalogSetAndListForUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, []users.NewUser{
		{UserName: "sam", Password: "sam-password-123"},
	}))
	sam, err := env.users.GetByUserName(ctx, "sam")
	require.NoError(t, err)

	rec := env.do(t, "PUT", "/users/"+itoa(sam.ID)+"/catalogs", token, map[string]interface{}{
		"tags": []string{"finance", "legal"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, "GET", "/users/"+itoa(sam.ID)+"/catalogs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tags []string
	decode(t, rec, &tags)
	assert.ElementsMatch(t, []string{"finance", "legal"}, tags)

	// Replace shrinks the set.
	rec = env.do(t, "PUT", "/users/"+itoa(sam.ID)+"/catalogs", token, map[string]interface{}{
		"tags": []string{"legal"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/users/"+itoa(sam.ID)+"/catalogs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tags = nil
	decode(t, rec, &tags)
	assert.Equal(t, []string{"legal"}, tags)
}

func TestCatalogAllAndUserCount(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, []users.NewUser{
		{UserName: "alice", Password: "alice-password-1"},
		{UserName: "bob", Password: "bob-password-111"},
	}))
	alice, err := env.users.GetByUserName(ctx, "alice")
	require.NoError(t, err)
	bob, err := env.users.GetByUserName(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, env.catalog.SetForUser(ctx, alice.ID, []string{"finance"}))
	require.NoError(t, env.catalog.SetForUser(ctx, bob.ID, []string{"finance", "legal"}))

	rec := env.do(t, "GET", "/catalogs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []string
	decode(t, rec, &all)
	assert.ElementsMatch(t, []string{"finance", "legal"}, all)

	rec = env.do(t, "GET", "/catalogs/finance/users/count", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestCatalogRejectsBlankTag(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	ctx := context.Background()

	require.NoError(t, env.users.Create(ctx, []users.NewUser{
		{UserName: "sam", Password: "sam-password-123"},
	}))
	sam, err := env.users.GetByUserName(ctx, "sam")
	require.NoError(t, err)

	rec := env.do(t, "PUT", "/users/"+itoa(sam.ID)+"/catalogs", token, map[string]interface{}{
		"tags": []string{"finance", ""},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
