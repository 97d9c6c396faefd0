// Package middleware provides the HTTP middleware stack shared by all Warden
// endpoints: bearer-token authentication, request IDs, access logging, and
// Redis-backed rate limiting.
//
// Ordering matters: RequestID and Logging wrap everything, RateLimit runs
// before authentication, and AuthMiddleware must run before the authz guard
// so the identity context the guard reads is populated.
package middleware
