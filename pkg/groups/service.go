package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/authz"
)

const groupColumns = `id, name, note, create_time`

// lockStripes bounds the per-group mutation locks.
const lockStripes = 64

// Service provides group storage and the membership/role projections.
type Service struct {
	db       *sql.DB
	enforcer *authz.Enforcer

	// groupLocks serializes the two-step projection writes per group.
	groupLocks [lockStripes]sync.Mutex
}

// NewService creates a group service writing through the given enforcer.
func NewService(db *sql.DB, enforcer *authz.Enforcer) *Service {
	return &Service{db: db, enforcer: enforcer}
}

func (s *Service) groupLock(groupID int64) *sync.Mutex {
	return &s.groupLocks[uint64(groupID)%lockStripes]
}

func scanGroup(sc interface{ Scan(...interface{}) error }) (*Group, error) {
	g := &Group{}
	if err := sc.Scan(&g.ID, &g.Name, &g.Note, &g.CreateTime); err != nil {
		return nil, err
	}
	return g, nil
}

// Create inserts a group and attaches the initial role list.
func (s *Service) Create(ctx context.Context, name, note string, roleIDs []int64) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", apperr.ErrInvalidArgument)
	}

	var existing int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM groups WHERE name = $1", name).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: group name already taken: %s", apperr.ErrConflict, name)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check group name: %w", err)
	}

	g := &Group{Name: name, Note: note}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO groups (name, note) VALUES ($1, $2)
		RETURNING id, create_time`, name, note).Scan(&g.ID, &g.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	for _, roleID := range roleIDs {
		if err := s.AddRole(ctx, g.ID, roleID); err != nil {
			return nil, fmt.Errorf("group created but role attach failed: %w", err)
		}
	}
	return g, nil
}

// Get returns a group by id.
func (s *Service) Get(ctx context.Context, id int64) (*Group, error) {
	query := fmt.Sprintf("SELECT %s FROM groups WHERE id = $1", groupColumns)
	g, err := scanGroup(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: group %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// List returns a page of groups, optionally filtered by a name/note substring.
func (s *Service) List(ctx context.Context, search string, pageNo, pageSize int) ([]Group, int64, error) {
	where := "1 = 1"
	args := []interface{}{}
	if search != "" {
		where = "(name LIKE $1 OR note LIKE $1)"
		args = append(args, "%"+search+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM groups WHERE %s ORDER BY id LIMIT $%d OFFSET $%d",
		groupColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, pageNo*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, *g)
	}
	return out, total, rows.Err()
}

// Update edits a group's name and note.
func (s *Service) Update(ctx context.Context, id int64, name, note string) error {
	if name == "" {
		return fmt.Errorf("%w: group name is required", apperr.ErrInvalidArgument)
	}

	var holder int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM groups WHERE name = $1", name).Scan(&holder)
	if err == nil && holder != id {
		return fmt.Errorf("%w: group name already taken: %s", apperr.ErrConflict, name)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check group name: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE groups SET name = $1, note = $2 WHERE id = $3", name, note, id)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: group %d", apperr.ErrNotFound, id)
	}
	return nil
}

// Delete removes a group, its membership and role edges, and every policy
// grant mentioning it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	lock := s.groupLock(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_roles WHERE group_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete group roles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_groups WHERE group_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete group memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM groups WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: group %d", apperr.ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}

	// Erase the group from the policy store: its role edges and every
	// membership edge pointing at it.
	if _, err := s.enforcer.RemoveSubject(ctx, authz.GroupKey(id)); err != nil {
		return fmt.Errorf("group rows deleted but policy cleanup failed: %w", err)
	}
	return nil
}

// Count returns the number of groups.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return n, nil
}

// AddRole attaches a role to a group: relational edge first, then the
// mirrored inheritance grant. Already-attached roles are a no-op.
func (s *Service) AddRole(ctx context.Context, groupID, roleID int64) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO group_roles (group_id, role_id) VALUES ($1, $2)
		ON CONFLICT (group_id, role_id) DO NOTHING`, groupID, roleID)
	if err != nil {
		return fmt.Errorf("failed to attach role: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	if _, err := s.enforcer.Grant(ctx, authz.GroupKey(groupID), authz.DomainRole, authz.RoleKey(roleID)); err != nil {
		return fmt.Errorf("role edge written but policy grant failed: %w", err)
	}
	return nil
}

// RemoveRole detaches a role from a group and revokes the mirrored grant.
func (s *Service) RemoveRole(ctx context.Context, groupID, roleID int64) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM group_roles WHERE group_id = $1 AND role_id = $2", groupID, roleID)
	if err != nil {
		return fmt.Errorf("failed to detach role: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}

	if _, err := s.enforcer.Revoke(ctx, authz.GroupKey(groupID), authz.DomainRole, authz.RoleKey(roleID)); err != nil {
		return fmt.Errorf("role edge removed but policy revoke failed: %w", err)
	}
	return nil
}

// RoleIDsForGroup returns the ids of the roles attached to a group.
func (s *Service) RoleIDsForGroup(ctx context.Context, groupID int64) ([]int64, error) {
	return s.idList(ctx, "SELECT role_id FROM group_roles WHERE group_id = $1 ORDER BY role_id", groupID)
}

// AddUser puts a user into a group: relational edge first, then the mirrored
// membership grant. Existing members are a no-op.
func (s *Service) AddUser(ctx context.Context, groupID, userID int64) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)
		ON CONFLICT (user_id, group_id) DO NOTHING`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	if _, err := s.enforcer.Grant(ctx, authz.UserKey(userID), authz.DomainGroup, authz.GroupKey(groupID)); err != nil {
		return fmt.Errorf("membership edge written but policy grant failed: %w", err)
	}
	return nil
}

// RemoveUser takes a user out of a group and revokes the membership grant.
func (s *Service) RemoveUser(ctx context.Context, groupID, userID int64) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2", userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}

	if _, err := s.enforcer.Revoke(ctx, authz.UserKey(userID), authz.DomainGroup, authz.GroupKey(groupID)); err != nil {
		return fmt.Errorf("membership edge removed but policy revoke failed: %w", err)
	}
	return nil
}

// UserIDsForGroup returns the ids of a group's members.
func (s *Service) UserIDsForGroup(ctx context.Context, groupID int64) ([]int64, error) {
	return s.idList(ctx, "SELECT user_id FROM user_groups WHERE group_id = $1 ORDER BY user_id", groupID)
}

// GroupIDsForUser returns the ids of the groups a user belongs to.
func (s *Service) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return s.idList(ctx, "SELECT group_id FROM user_groups WHERE user_id = $1 ORDER BY group_id", userID)
}

// GroupsForUser returns the groups a user belongs to.
func (s *Service) GroupsForUser(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM groups
		WHERE id IN (SELECT group_id FROM user_groups WHERE user_id = $1)
		ORDER BY id`, groupColumns), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// RemoveUserMemberships drops every group edge for a user. The mirrored
// grants are revoked individually so other subjects' grants stay untouched.
func (s *Service) RemoveUserMemberships(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: invalid user id", apperr.ErrInvalidArgument)
	}

	groupIDs, err := s.GroupIDsForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, gid := range groupIDs {
		if err := s.RemoveUser(ctx, gid, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) idList(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
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
