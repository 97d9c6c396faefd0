package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// ChatConfig configures the chat-platform OAuth2 provider.
type ChatConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
}

// ChatProvider implements the chat-platform OAuth2 login flow.
type ChatProvider struct {
	cfg    ChatConfig
	oauth2 *oauth2.Config
}

// NewChatProvider creates the chat-platform provider.
func NewChatProvider(cfg ChatConfig) (*ChatProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("chat provider: client id and secret are required")
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("chat provider: auth, token and userinfo URLs are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("chat provider: redirect URL is required")
	}

	return &ChatProvider{
		cfg: cfg,
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      []string{"snsapi_login"},
		},
	}, nil
}

// Kind returns the protocol.
func (p *ChatProvider) Kind() ProviderKind { return KindOAuth2 }

// Name returns "chat".
func (p *ChatProvider) Name() string { return ProviderChat }

// AuthURL builds the authorization redirect.
func (p *ChatProvider) AuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// chatUserInfo is the userinfo payload of the chat platform.
type chatUserInfo struct {
	OpenID    string `json:"openid"`
	Nickname  string `json:"nickname"`
	HeadImg   string `json:"headimgurl"`
	Email     string `json:"email"`
	ErrCode   int    `json:"errcode"`
	ErrMsg    string `json:"errmsg"`
}

// Exchange trades the code for a token and fetches the user profile.
func (p *ChatProvider) Exchange(ctx context.Context, code string) (*ExternalUser, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := p.oauth2.Client(ctx, token)
	resp, err := client.Get(p.cfg.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, body)
	}

	var info chatUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.ErrCode != 0 {
		return nil, fmt.Errorf("chat platform error %d: %s", info.ErrCode, info.ErrMsg)
	}
	if info.OpenID == "" {
		return nil, fmt.Errorf("missing openid in user info")
	}

	return &ExternalUser{
		ExternalID: info.OpenID,
		Username:   info.OpenID,
		NickName:   info.Nickname,
		Email:      info.Email,
		AvatarURL:  info.HeadImg,
	}, nil
}
