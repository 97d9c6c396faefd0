// Package authz implements Warden's authorization decision engine.
//
// The engine maps (subject, domain, object) triples to allow/deny decisions.
// Three pieces cooperate:
//
//   - Store: the durable set of grant triples, the only persisted state of
//     the engine. Role assignments, group memberships and permission tags are
//     all materialized here as grants in reserved domains.
//
//   - Model: the fixed matcher definition, compiled once at startup from a
//     static conf artifact. The matcher is a closed set of match kinds
//     (exact, role-inherits, group-member, wildcard); there is no runtime
//     rule-language interpreter.
//
//   - Enforcer: the decision function. Check resolves the subject's
//     inheritance closure (user -> group -> role -> role..., cycle-safe) and
//     tests the request against each reachable subject's grants. Mutations
//     write through to the store and purge the in-memory closure cache.
//
// Subjects are typed, prefixed keys: "user:42", "role:7", "group:3". Domains
// separate edge kinds: "role" and "group" hold inheritance edges, "api" holds
// the permission tags checked by the HTTP guard, "catalog" holds catalog
// access tags.
//
// Usage:
//
//	model, _ := authz.DefaultModel()
//	store := authz.NewStore(db)
//	enforcer, _ := authz.NewEnforcer(model, store)
//
//	ok, err := enforcer.Check(ctx, authz.UserKey(7), "app", "publish")
//
// The guard wires the enforcer into the HTTP layer:
//
//	r.Use(guard.RequirePermission("MANAGE_USER"))
//
// Checks are deterministic and side-effect free; a missing permission is a
// normal false result, not an error.
package authz
