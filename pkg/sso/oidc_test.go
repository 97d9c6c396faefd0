package sso

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIssuer serves a minimal OIDC discovery document whose issuer matches
// the server's own URL.
func fakeIssuer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"jwks_uri": %q,
			"id_token_signing_alg_values_supported": ["RS256"]
		}`, srv.URL, srv.URL+"/authorize", srv.URL+"/token", srv.URL+"/keys")
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"keys":[]}`)
	})

	return srv
}

func TestNewEnterpriseProviderDiscovery(t *testing.T) {
	srv := fakeIssuer(t)

	p, err := NewEnterpriseProvider(context.Background(), EnterpriseConfig{
		IssuerURL:    srv.URL,
		ClientID:     "warden",
		ClientSecret: "secret",
		RedirectURL:  "https://warden.example.com/auth/sso/enterprise/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, KindOIDC, p.Kind())
	assert.Equal(t, ProviderEnterprise, p.Name())

	u := p.AuthURL("opaque-state")
	assert.Contains(t, u, srv.URL+"/authorize")
	assert.Contains(t, u, "state=opaque-state")
	assert.Contains(t, u, "scope=openid")
}

func TestNewEnterpriseProviderValidatesConfig(t *testing.T) {
	_, err := NewEnterpriseProvider(context.Background(), EnterpriseConfig{})
	assert.Error(t, err)

	_, err = NewEnterpriseProvider(context.Background(), EnterpriseConfig{
		IssuerURL:    "https://issuer.example.com",
		ClientID:     "warden",
		ClientSecret: "secret",
	})
	assert.Error(t, err, "redirect URL is required")
}

func TestNewEnterpriseProviderDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := NewEnterpriseProvider(context.Background(), EnterpriseConfig{
		IssuerURL:    srv.URL,
		ClientID:     "warden",
		ClientSecret: "secret",
		RedirectURL:  "https://warden.example.com/auth/sso/enterprise/callback",
	})
	assert.Error(t, err)
}
