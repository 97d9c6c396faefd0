package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/groups"
	"github.com/wardenhq/warden/pkg/middleware"
	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/roles"
	"github.com/wardenhq/warden/pkg/sso"
	"github.com/wardenhq/warden/pkg/users"
)

// Permission tags checked by the guard on protected routes.
const (
	PermManageUser    = "MANAGE_USER"
	PermManageRole    = "MANAGE_ROLE"
	PermManageGroup   = "MANAGE_GROUP"
	PermManageCatalog = "MANAGE_CATALOG"
	PermManageAuthz   = "MANAGE_AUTHZ"
)

// Deps are the constructed services the server routes to.
type Deps struct {
	Users    *users.Service
	Roles    *roles.Service
	Groups   *groups.Service
	Catalog  *catalog.Service
	Enforcer *authz.Enforcer
	Tokens   *auth.TokenManager

	// SSO is optional; when nil the /auth/sso routes are not registered.
	SSO *SSODeps

	// RateLimiter is optional; when nil no rate limiting is applied.
	RateLimiter *middleware.RateLimiter

	// Metrics is optional; when nil no HTTP metrics are recorded.
	Metrics *observability.Metrics
}

// SSODeps wires the external-identity login flows.
type SSODeps struct {
	Registry    *sso.Registry
	SAML        *sso.SAMLProvider
	States      *sso.StateCodec
	Provisioner *sso.Provisioner
}

// Server owns the router and the handler groups.
type Server struct {
	deps   Deps
	guard  *authz.Guard
	router *mux.Router
}

// NewServer builds the router with the full middleware stack and all routes
// registered.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:  deps,
		guard: authz.NewGuard(deps.Enforcer),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler, wrapped for trace propagation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "warden-api")
}

func (s *Server) buildRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	if s.deps.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	if s.deps.RateLimiter != nil {
		router.Use(s.deps.RateLimiter.Handler)
	}

	authn := middleware.NewAuthMiddleware(s.deps.Tokens, false)

	authHandlers := newAuthHandlers(s.deps)
	authHandlers.registerPublic(router)

	// Everything below requires a valid session token.
	protected := router.NewRoute().Subrouter()
	protected.Use(authn.Handler)
	authHandlers.registerProtected(protected)

	newUserHandlers(s.deps).register(protected, s.guard)
	newRoleHandlers(s.deps).register(protected, s.guard)
	newGroupHandlers(s.deps).register(protected, s.guard)
	newCatalogHandlers(s.deps).register(protected, s.guard)
	newAuthzHandlers(s.deps).register(protected, s.guard)

	return router
}

// guarded wraps a handler with a permission requirement.
func guarded(g *authz.Guard, tag string, h http.HandlerFunc) http.Handler {
	return g.RequirePermission(tag)(h)
}
