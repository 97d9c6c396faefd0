package authz

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/pkg/apperr"
)

// Grant is the atomic unit of policy: an ordered (subject, domain, object)
// triple. Grants are never mutated in place; callers remove and re-add.
type Grant struct {
	Subject string `json:"subject"`
	Domain  string `json:"domain"`
	Object  string `json:"object"`
}

// Reserved domains. DomainRole and DomainGroup hold inheritance edges
// (subject holds/inherits the object); the rest are permission-shaped.
const (
	// DomainRole marks role-inheritance edges: the subject holds the role
	// named by the object ("user:7" -> "role:12", "role:a" -> "role:b").
	DomainRole = "role"

	// DomainGroup marks group-membership edges: the subject is a member of
	// the group named by the object ("user:7" -> "group:3").
	DomainGroup = "group"

	// DomainAPI scopes the permission tags checked by the HTTP guard.
	DomainAPI = "api"

	// DomainCatalog scopes catalog access tags attached directly to users.
	DomainCatalog = "catalog"
)

// Subject key prefixes. Every subject is a typed, prefixed identifier so a
// user id can never collide with a role id in the policy store.
const (
	prefixUser  = "user:"
	prefixRole  = "role:"
	prefixGroup = "group:"
)

// UserKey returns the policy-store subject key for a user id.
func UserKey(userID int64) string {
	return fmt.Sprintf("%s%d", prefixUser, userID)
}

// RoleKey returns the policy-store subject key for a role id.
func RoleKey(roleID int64) string {
	return fmt.Sprintf("%s%d", prefixRole, roleID)
}

// GroupKey returns the policy-store subject key for a group id.
func GroupKey(groupID int64) string {
	return fmt.Sprintf("%s%d", prefixGroup, groupID)
}

// IsUserKey reports whether the subject key names a user.
func IsUserKey(subject string) bool {
	return strings.HasPrefix(subject, prefixUser)
}

// IsRoleKey reports whether the subject key names a role.
func IsRoleKey(subject string) bool {
	return strings.HasPrefix(subject, prefixRole)
}

// IsGroupKey reports whether the subject key names a group.
func IsGroupKey(subject string) bool {
	return strings.HasPrefix(subject, prefixGroup)
}

// validateTriple rejects malformed grant components. Subjects must carry a
// "kind:id" shape; domains and objects must be non-empty.
func validateTriple(subject, domain, object string) error {
	if err := validateSubject(subject); err != nil {
		return err
	}
	if domain == "" {
		return fmt.Errorf("%w: empty domain", apperr.ErrInvalidArgument)
	}
	if object == "" {
		return fmt.Errorf("%w: empty object", apperr.ErrInvalidArgument)
	}
	return nil
}

func validateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: empty subject", apperr.ErrInvalidArgument)
	}
	kind, rest, ok := strings.Cut(subject, ":")
	if !ok || kind == "" || rest == "" {
		return fmt.Errorf("%w: subject %q must have kind:id form", apperr.ErrInvalidArgument, subject)
	}
	return nil
}
