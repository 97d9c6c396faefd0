package middleware

import (
	"net/http"
	"strings"

	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/contextkeys"
	"github.com/wardenhq/warden/pkg/httputil"
)

// AuthMiddleware provides bearer-token authentication. It validates the
// session token and attaches the resulting Identity to the request context;
// it performs no authorization (that is the guard's job).
type AuthMiddleware struct {
	tokens   *auth.TokenManager
	optional bool // if true, requests without a token pass through anonymously
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(tokens *auth.TokenManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, optional: optional}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		identity, err := m.tokens.Validate(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the authenticated identity from the request, or nil if
// the request is anonymous.
func GetIdentity(r *http.Request) *auth.Identity {
	v := r.Context().Value(contextkeys.IdentityKey)
	if v == nil {
		return nil
	}
	identity, ok := v.(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}
