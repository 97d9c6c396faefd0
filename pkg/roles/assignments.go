package roles

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/authz"
)

// Assign gives a user a role: relational edge first, then the mirrored
// inheritance grant. Assigning an already-held role is a no-op.
func (s *Service) Assign(ctx context.Context, userID, roleID int64) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.assignLocked(ctx, userID, roleID)
}

func (s *Service) assignLocked(ctx context.Context, userID, roleID int64) error {
	if _, err := s.Get(ctx, roleID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	if _, err := s.enforcer.Grant(ctx, authz.UserKey(userID), authz.DomainRole, authz.RoleKey(roleID)); err != nil {
		return fmt.Errorf("assignment edge written but policy grant failed: %w", err)
	}
	return nil
}

// Unassign removes a role from a user and revokes the mirrored grant.
func (s *Service) Unassign(ctx context.Context, userID, roleID int64) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.unassignLocked(ctx, userID, roleID)
}

func (s *Service) unassignLocked(ctx context.Context, userID, roleID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2", userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to unassign role: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}

	if _, err := s.enforcer.Revoke(ctx, authz.UserKey(userID), authz.DomainRole, authz.RoleKey(roleID)); err != nil {
		return fmt.Errorf("assignment edge removed but policy revoke failed: %w", err)
	}
	return nil
}

// SetUserRoles replaces a user's role set. The edit is computed as a set
// difference against the current assignments; only the delta touches the
// tables and the policy store, so unchanged roles generate no writes.
func (s *Service) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.RoleIDsForUser(ctx, userID)
	if err != nil {
		return err
	}

	have := map[int64]bool{}
	for _, id := range current {
		have[id] = true
	}
	want := map[int64]bool{}
	for _, id := range roleIDs {
		want[id] = true
	}

	var willDelete, willInsert []int64
	for _, id := range current {
		if !want[id] {
			willDelete = append(willDelete, id)
		}
	}
	for _, id := range roleIDs {
		if !have[id] {
			willInsert = append(willInsert, id)
		}
	}

	// Validate the additions exist before writing anything.
	for _, id := range willInsert {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}

	for _, id := range willDelete {
		if err := s.unassignLocked(ctx, userID, id); err != nil {
			return err
		}
	}
	for _, id := range willInsert {
		if err := s.assignLocked(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// RoleIDsForUser returns the ids of the roles assigned to a user.
func (s *Service) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RolesForUser returns the roles assigned to a user.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM roles
		WHERE id IN (SELECT role_id FROM user_roles WHERE user_id = $1)
		ORDER BY id`, roleColumns), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UserIDsForRole returns the ids of the users holding a role.
func (s *Service) UserIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM user_roles WHERE role_id = $1 ORDER BY user_id", roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveUserAssignments drops every role edge for a user and erases the user
// from the policy store. Called when an account is deleted.
func (s *Service) RemoveUserAssignments(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: invalid user id", apperr.ErrInvalidArgument)
	}
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to delete user assignments: %w", err)
	}
	if _, err := s.enforcer.RemoveSubject(ctx, authz.UserKey(userID)); err != nil {
		return fmt.Errorf("assignment edges removed but policy cleanup failed: %w", err)
	}
	return nil
}
