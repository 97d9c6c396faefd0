// Package catalog manages catalog access tags attached directly to users.
// Unlike roles and groups there is no relational edge table: the policy
// store's catalog domain is the single source of truth.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/authz"
)

// Service projects catalog tags onto the policy store.
type Service struct {
	enforcer *authz.Enforcer
}

// NewService creates a catalog service over the given enforcer.
func NewService(enforcer *authz.Enforcer) *Service {
	return &Service{enforcer: enforcer}
}

// ListForUser returns the catalog tags granted directly to a user.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]string, error) {
	grants, err := s.enforcer.ListPermissions(ctx, authz.UserKey(userID))
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, g := range grants {
		if g.Domain == authz.DomainCatalog {
			tags = append(tags, g.Object)
		}
	}
	return tags, nil
}

// SetForUser replaces a user's catalog tag set: revoke the current tags, then
// grant the new ones. The replace is not atomic; a crash between the steps
// leaves the user with no catalog tags until the set is written again.
func (s *Service) SetForUser(ctx context.Context, userID int64, tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: empty catalog tag", apperr.ErrInvalidArgument)
		}
	}

	current, err := s.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, tag := range current {
		if _, err := s.enforcer.Revoke(ctx, authz.UserKey(userID), authz.DomainCatalog, tag); err != nil {
			return err
		}
	}
	for _, tag := range tags {
		if _, err := s.enforcer.Grant(ctx, authz.UserKey(userID), authz.DomainCatalog, tag); err != nil {
			return err
		}
	}
	return nil
}

// HasTag reports whether the user can access a catalog, including tags
// reached through role or group inheritance.
func (s *Service) HasTag(ctx context.Context, userID int64, tag string) (bool, error) {
	return s.enforcer.Check(ctx, authz.UserKey(userID), authz.DomainCatalog, tag)
}

// UserCount returns how many users hold a catalog tag directly.
func (s *Service) UserCount(ctx context.Context, tag string) (int, error) {
	if tag == "" {
		return 0, fmt.Errorf("%w: empty catalog tag", apperr.ErrInvalidArgument)
	}
	subjects, err := s.enforcer.Store().SubjectsWithGrant(ctx, authz.DomainCatalog, tag)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, subject := range subjects {
		if !authz.IsRoleKey(subject) && !authz.IsGroupKey(subject) {
			n++
		}
	}
	return n, nil
}

// All returns every catalog tag present in the policy store.
func (s *Service) All(ctx context.Context) ([]string, error) {
	return s.enforcer.Store().ObjectsInDomain(ctx, authz.DomainCatalog)
}
