package authz

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// closureCacheSize bounds the in-memory subject-closure projection.
const closureCacheSize = 4096

// Enforcer is the authorization decision engine: a deterministic,
// side-effect-free decision function over the policy model and policy store,
// plus the mutation API that writes through to the store and invalidates the
// in-memory closure projection.
//
// Construct one Enforcer at process start and pass the handle into the guard
// and the projection services; there is no package-level instance.
type Enforcer struct {
	model *Model
	store *Store

	// closures caches subject -> reachable inheritance closure. Invalidated
	// wholesale on every mutation.
	closures *lru.Cache[string, []string]

	decisions *prometheus.CounterVec
	tracer    trace.Tracer
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithDecisionCounter wires a prometheus counter labeled by domain and effect
// ("allow"/"deny") that Check increments.
func WithDecisionCounter(c *prometheus.CounterVec) Option {
	return func(e *Enforcer) { e.decisions = c }
}

// NewEnforcer creates an enforcer over the given model and store.
func NewEnforcer(model *Model, store *Store, opts ...Option) (*Enforcer, error) {
	if model == nil || store == nil {
		return nil, fmt.Errorf("model and store are required")
	}
	closures, err := lru.New[string, []string](closureCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create closure cache: %w", err)
	}

	e := &Enforcer{
		model:    model,
		store:    store,
		closures: closures,
		tracer:   otel.Tracer("warden/authz"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Check evaluates (subject, domain, object) against the current grants plus
// the closure of role/group inheritance. Absence of permission is a normal
// negative result (false, nil), never an error.
func (e *Enforcer) Check(ctx context.Context, subject, domain, object string) (bool, error) {
	if err := validateTriple(subject, domain, object); err != nil {
		return false, err
	}

	ctx, span := e.tracer.Start(ctx, "authz.Check", trace.WithAttributes(
		attribute.String("authz.subject", subject),
		attribute.String("authz.domain", domain),
	))
	defer span.End()

	subjects, err := e.closure(ctx, subject)
	if err != nil {
		return false, err
	}

	for _, s := range subjects {
		grants, err := e.store.GrantsForSubject(ctx, s)
		if err != nil {
			return false, err
		}
		for _, g := range grants {
			if g.Domain != domain {
				continue
			}
			if e.model.MatchObject(object, g.Object) {
				e.countDecision(domain, "allow")
				span.SetAttributes(attribute.Bool("authz.allowed", true))
				return true, nil
			}
		}
	}

	e.countDecision(domain, "deny")
	span.SetAttributes(attribute.Bool("authz.allowed", false))
	return false, nil
}

// Grant adds a single grant triple, writing through to the policy store.
// Reports whether the store changed.
func (e *Enforcer) Grant(ctx context.Context, subject, domain, object string) (bool, error) {
	changed, err := e.store.AddGrant(ctx, subject, domain, object)
	if err != nil {
		return false, err
	}
	if changed {
		e.invalidate()
	}
	return changed, nil
}

// Revoke removes a single grant triple. Reports whether a row was removed.
func (e *Enforcer) Revoke(ctx context.Context, subject, domain, object string) (bool, error) {
	removed, err := e.store.RemoveGrant(ctx, subject, domain, object)
	if err != nil {
		return false, err
	}
	if removed {
		e.invalidate()
	}
	return removed, nil
}

// RevokeAll removes every grant held by the subject and returns the count.
//
// Callers replacing a subject's full grant set call RevokeAll and then
// re-grant the new set. The replace is NOT atomic: a crash between the two
// steps leaves the subject with no grants. Where a precise delta is
// computable, prefer mirroring the delta over RevokeAll + reapply.
func (e *Enforcer) RevokeAll(ctx context.Context, subject string) (int64, error) {
	n, err := e.store.RemoveAllGrantsForSubject(ctx, subject)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.invalidate()
	}
	return n, nil
}

// RemoveSubject erases a subject from the policy store entirely, including
// inheritance edges pointing at it. Used when a role or group is deleted.
func (e *Enforcer) RemoveSubject(ctx context.Context, key string) (int64, error) {
	n, err := e.store.RemoveGrantsMentioning(ctx, key)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.invalidate()
	}
	return n, nil
}

// ListPermissions returns the subject's permission-shaped grants, excluding
// role-inheritance and group-membership edges.
func (e *Enforcer) ListPermissions(ctx context.Context, subject string) ([]Grant, error) {
	grants, err := e.store.GrantsForSubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	perms := make([]Grant, 0, len(grants))
	for _, g := range grants {
		if e.model.FollowsDomain(g.Domain) {
			continue
		}
		perms = append(perms, g)
	}
	return perms, nil
}

// Store exposes the underlying policy store for read-only projections
// (catalog user counts, catalog listings).
func (e *Enforcer) Store() *Store {
	return e.store
}

// closure returns the subject plus every subject reachable through the
// model's inheritance domains. Breadth-first with a visited set, so a cyclic
// role-inherits-role edge terminates at the revisit instead of looping.
func (e *Enforcer) closure(ctx context.Context, subject string) ([]string, error) {
	if !e.model.InheritsSubjects() {
		return []string{subject}, nil
	}
	if cached, ok := e.closures.Get(subject); ok {
		return cached, nil
	}

	visited := map[string]bool{subject: true}
	order := []string{subject}
	frontier := []string{subject}

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		grants, err := e.store.GrantsForSubject(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			if !e.model.FollowsDomain(g.Domain) {
				continue
			}
			if visited[g.Object] {
				continue
			}
			visited[g.Object] = true
			order = append(order, g.Object)
			frontier = append(frontier, g.Object)
		}
	}

	e.closures.Add(subject, order)
	return order, nil
}

func (e *Enforcer) invalidate() {
	e.closures.Purge()
}

func (e *Enforcer) countDecision(domain, effect string) {
	if e.decisions != nil {
		e.decisions.WithLabelValues(domain, effect).Inc()
	}
}
