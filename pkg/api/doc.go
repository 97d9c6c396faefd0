// Package api is the HTTP surface of Warden. Handlers translate between JSON
// and the core services; no HTTP types cross into pkg/users, pkg/roles,
// pkg/groups, pkg/catalog or pkg/authz.
//
// Protected routes run through the middleware stack in a fixed order:
// request id, access logging, metrics, rate limiting, authentication, then
// the authorization guard. The guard depends on the identity the
// authentication middleware put on the context.
package api
