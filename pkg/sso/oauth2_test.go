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

// fakeChatIdP serves the token and userinfo endpoints of the chat platform.
func fakeChatIdP(t *testing.T, userinfoBody string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, userinfoBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func chatConfigFor(srv *httptest.Server) ChatConfig {
	return ChatConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		RedirectURL:  "https://warden.example.com/auth/sso/chat/callback",
	}
}

func TestChatProviderExchange(t *testing.T) {
	srv := fakeChatIdP(t, `{"openid":"ox-99","nickname":"Sam","headimgurl":"https://img.example.com/s.png","email":"sam@example.com"}`)

	p, err := NewChatProvider(chatConfigFor(srv))
	require.NoError(t, err)

	ext, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "ox-99", ext.ExternalID)
	assert.Equal(t, "ox-99", ext.Username)
	assert.Equal(t, "Sam", ext.NickName)
	assert.Equal(t, "sam@example.com", ext.Email)
	assert.Equal(t, "https://img.example.com/s.png", ext.AvatarURL)
}

func TestChatProviderExchangeRejectsBadCode(t *testing.T) {
	srv := fakeChatIdP(t, `{}`)

	p, err := NewChatProvider(chatConfigFor(srv))
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)

	_, err = p.Exchange(context.Background(), "")
	assert.Error(t, err)
}

func TestChatProviderExchangePlatformError(t *testing.T) {
	srv := fakeChatIdP(t, `{"errcode":40003,"errmsg":"invalid openid"}`)

	p, err := NewChatProvider(chatConfigFor(srv))
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "good-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "40003")
}

func TestChatProviderExchangeMissingOpenID(t *testing.T) {
	srv := fakeChatIdP(t, `{"nickname":"Sam"}`)

	p, err := NewChatProvider(chatConfigFor(srv))
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestChatProviderAuthURL(t *testing.T) {
	srv := fakeChatIdP(t, `{}`)

	p, err := NewChatProvider(chatConfigFor(srv))
	require.NoError(t, err)

	u := p.AuthURL("opaque-state")
	assert.Contains(t, u, "state=opaque-state")
	assert.Contains(t, u, "client_id=id")
}

func TestNewChatProviderValidatesConfig(t *testing.T) {
	_, err := NewChatProvider(ChatConfig{})
	assert.Error(t, err)

	_, err = NewChatProvider(ChatConfig{ClientID: "id", ClientSecret: "secret"})
	assert.Error(t, err)

	_, err = NewChatProvider(ChatConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURL:      "https://idp/authorize",
		TokenURL:     "https://idp/token",
		UserInfoURL:  "https://idp/userinfo",
	})
	assert.Error(t, err, "redirect URL is required")
}
