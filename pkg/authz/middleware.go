package authz

import (
	"net/http"

	"github.com/wardenhq/warden/pkg/httputil"
	"github.com/wardenhq/warden/pkg/middleware"
)

// Guard intercepts protected calls and short-circuits them when the enforcer
// denies the declared permission tag. It must be installed after the
// authentication middleware, which populates the identity context.
type Guard struct {
	enforcer *Enforcer
}

// NewGuard creates a guard over the enforcer handle.
func NewGuard(enforcer *Enforcer) *Guard {
	return &Guard{enforcer: enforcer}
}

// RequirePermission returns middleware that requires the authenticated user
// to hold the permission tag in the API domain.
//
// Missing identity context fails 401 (the authentication middleware did not
// run or did not authenticate); a negative enforcement decision fails 403
// before any handler logic executes, with no detail about the rule that
// denied. An enforcement error is a 503: the store being unreachable is fatal
// for the in-flight request, never silently allowed.
func (g *Guard) RequirePermission(tag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := middleware.GetIdentity(r)
			if identity == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			allowed, err := g.enforcer.Check(r.Context(), UserKey(identity.UserID), DomainAPI, tag)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if !allowed {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
