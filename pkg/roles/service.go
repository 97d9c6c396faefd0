package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/authz"
)

const roleColumns = `id, name, note, is_preset, create_time`

// userLockStripes bounds the per-user mutation locks.
const userLockStripes = 64

// Service provides role storage and the role permission projection.
type Service struct {
	db       *sql.DB
	enforcer *authz.Enforcer

	// userLocks serializes the two-step assignment writes (edge + mirrored
	// grant) per user, so concurrent edits converge to an agreeing pair.
	userLocks [userLockStripes]sync.Mutex
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	return &s.userLocks[uint64(userID)%userLockStripes]
}

// NewService creates a role service writing through the given enforcer.
func NewService(db *sql.DB, enforcer *authz.Enforcer) *Service {
	return &Service{db: db, enforcer: enforcer}
}

func scanRole(s interface{ Scan(...interface{}) error }) (*Role, error) {
	r := &Role{}
	if err := s.Scan(&r.ID, &r.Name, &r.Note, &r.IsPreset, &r.CreateTime); err != nil {
		return nil, err
	}
	return r, nil
}

// Create inserts a role. Role names are unique.
func (s *Service) Create(ctx context.Context, name, note string) (*Role, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", apperr.ErrInvalidArgument)
	}

	var existing int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", name).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: role name already taken: %s", apperr.ErrConflict, name)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check role name: %w", err)
	}

	r := &Role{Name: name, Note: note}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, note) VALUES ($1, $2)
		RETURNING id, create_time`, name, note).Scan(&r.ID, &r.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return r, nil
}

// Get returns a role by id.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	query := fmt.Sprintf("SELECT %s FROM roles WHERE id = $1", roleColumns)
	r, err := scanRole(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: role %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return r, nil
}

// List returns a page of roles, optionally filtered by a name/note substring.
func (s *Service) List(ctx context.Context, search string, pageNo, pageSize int) ([]Role, int64, error) {
	where := "1 = 1"
	args := []interface{}{}
	if search != "" {
		where = "(name LIKE $1 OR note LIKE $1)"
		args = append(args, "%"+search+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM roles WHERE %s ORDER BY id LIMIT $%d OFFSET $%d",
		roleColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, pageNo*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// Update edits a role's name and note.
func (s *Service) Update(ctx context.Context, id int64, name, note string) error {
	if name == "" {
		return fmt.Errorf("%w: role name is required", apperr.ErrInvalidArgument)
	}

	var holder int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", name).Scan(&holder)
	if err == nil && holder != id {
		return fmt.Errorf("%w: role name already taken: %s", apperr.ErrConflict, name)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check role name: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE roles SET name = $1, note = $2 WHERE id = $3", name, note, id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: role %d", apperr.ErrNotFound, id)
	}
	return nil
}

// Delete removes the given roles, their assignment edges, and every policy
// grant mentioning them. Preset roles reject the whole batch.
func (s *Service) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no ids given", apperr.ErrInvalidArgument)
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	ph := placeholders(1, len(ids))

	var presets []string
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT name FROM roles WHERE is_preset = TRUE AND id IN (%s)", ph), args...)
	if err != nil {
		return fmt.Errorf("failed to check preset roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		presets = append(presets, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(presets) > 0 {
		return fmt.Errorf("%w: preset role cannot be deleted: %s", apperr.ErrProtectedResource, strings.Join(presets, ", "))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM user_roles WHERE role_id IN (%s)", ph), args...); err != nil {
		return fmt.Errorf("failed to delete role assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM roles WHERE id IN (%s)", ph), args...); err != nil {
		return fmt.Errorf("failed to delete roles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role deletion: %w", err)
	}

	// Erase the roles from the policy store, including inheritance edges
	// pointing at them. A failure here leaves orphaned grants for the
	// reconciliation pass to sweep.
	for _, id := range ids {
		if _, err := s.enforcer.RemoveSubject(ctx, authz.RoleKey(id)); err != nil {
			return fmt.Errorf("role rows deleted but policy cleanup failed: %w", err)
		}
	}
	return nil
}

// Count returns the number of roles.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return n, nil
}

// GrantPermission attaches a permission tag to a role in the given domain.
func (s *Service) GrantPermission(ctx context.Context, roleID int64, domain, object string) (bool, error) {
	if _, err := s.Get(ctx, roleID); err != nil {
		return false, err
	}
	return s.enforcer.Grant(ctx, authz.RoleKey(roleID), domain, object)
}

// RevokePermission detaches a permission tag from a role.
func (s *Service) RevokePermission(ctx context.Context, roleID int64, domain, object string) (bool, error) {
	return s.enforcer.Revoke(ctx, authz.RoleKey(roleID), domain, object)
}

// ListPermissions returns a role's permission-shaped grants.
func (s *Service) ListPermissions(ctx context.Context, roleID int64) ([]authz.Grant, error) {
	return s.enforcer.ListPermissions(ctx, authz.RoleKey(roleID))
}

// SetPermissions replaces a role's permission set within one domain with the
// given objects, mirroring only the delta into the policy store.
func (s *Service) SetPermissions(ctx context.Context, roleID int64, domain string, objects []string) error {
	if _, err := s.Get(ctx, roleID); err != nil {
		return err
	}

	current, err := s.enforcer.ListPermissions(ctx, authz.RoleKey(roleID))
	if err != nil {
		return err
	}

	have := map[string]bool{}
	for _, g := range current {
		if g.Domain == domain {
			have[g.Object] = true
		}
	}
	want := map[string]bool{}
	for _, o := range objects {
		want[o] = true
	}

	for o := range have {
		if want[o] {
			continue
		}
		if _, err := s.enforcer.Revoke(ctx, authz.RoleKey(roleID), domain, o); err != nil {
			return err
		}
	}
	for o := range want {
		if have[o] {
			continue
		}
		if _, err := s.enforcer.Grant(ctx, authz.RoleKey(roleID), domain, o); err != nil {
			return err
		}
	}
	return nil
}

// placeholders renders "$start,$start+1,..." for n parameters.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}
