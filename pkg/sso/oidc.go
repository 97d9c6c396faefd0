package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// EnterpriseConfig configures the enterprise-identity OIDC provider.
type EnterpriseConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// EnterpriseProvider implements the enterprise-identity OIDC login flow.
// Endpoints come from the issuer's discovery document.
type EnterpriseProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewEnterpriseProvider discovers the issuer and creates the provider.
func NewEnterpriseProvider(ctx context.Context, cfg EnterpriseConfig) (*EnterpriseProvider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("enterprise provider: issuer, client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("enterprise provider: redirect URL is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("enterprise provider discovery failed: %w", err)
	}

	return &EnterpriseProvider{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// Kind returns the protocol.
func (p *EnterpriseProvider) Kind() ProviderKind { return KindOIDC }

// Name returns "enterprise".
func (p *EnterpriseProvider) Name() string { return ProviderEnterprise }

// AuthURL builds the authorization redirect.
func (p *EnterpriseProvider) AuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// Exchange trades the code for tokens and verifies the id_token.
func (p *EnterpriseProvider) Exchange(ctx context.Context, code string) (*ExternalUser, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
		Email             string `json:"email"`
		Picture           string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token claims: %w", err)
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Email
	}
	if username == "" {
		username = idToken.Subject
	}

	return &ExternalUser{
		ExternalID: idToken.Subject,
		Username:   username,
		NickName:   claims.Name,
		Email:      claims.Email,
		AvatarURL:  claims.Picture,
	}, nil
}
