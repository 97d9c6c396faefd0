// Package sso implements external identity login: the chat-platform OAuth2
// flow, the enterprise-identity OIDC flow, and a generic SAML provider, plus
// JIT provisioning of first-login users.
package sso

import (
	"github.com/wardenhq/warden/pkg/auth"
)

// ProviderKind is the protocol a provider speaks.
type ProviderKind string

const (
	KindOAuth2 ProviderKind = "oauth2"
	KindOIDC   ProviderKind = "oidc"
	KindSAML   ProviderKind = "saml"
)

// Well-known provider names. The name doubles as the open-id prefix so the
// same external id from two providers can never collide.
const (
	ProviderChat       = "chat"
	ProviderEnterprise = "enterprise"
	ProviderSAML       = "saml"
)

// ExternalUser is the identity a provider hands back after a successful
// login.
type ExternalUser struct {
	ExternalID string `json:"externalId"`
	Username   string `json:"username"`
	NickName   string `json:"nickName"`
	Email      string `json:"email"`
	AvatarURL  string `json:"avatarUrl"`
}

// OpenID returns the provider-scoped identity key stored on the user row.
func (u *ExternalUser) OpenID(providerName string) string {
	return providerName + ":" + u.ExternalID
}

// registerTypeFor maps a provider name to the account register type.
func registerTypeFor(providerName string) auth.RegisterType {
	switch providerName {
	case ProviderChat:
		return auth.RegisterTypeChat
	default:
		return auth.RegisterTypeEnterprise
	}
}
