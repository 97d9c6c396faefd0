// Package auth provides local credential handling for Warden: bcrypt password
// hashing, JWT session tokens, and the Identity carried on authenticated
// requests. External identity providers live in pkg/sso.
package auth

// Identity is the authenticated principal attached to a request context by
// the authentication middleware. The authz guard and self-service endpoints
// read it; nothing below the HTTP layer sees tokens or headers.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// RegisterType records how an account was created.
type RegisterType string

const (
	RegisterTypeAccount    RegisterType = "account"    // local username/password
	RegisterTypeChat       RegisterType = "chat"       // chat-platform OAuth
	RegisterTypeEnterprise RegisterType = "enterprise" // enterprise-identity OIDC
)
