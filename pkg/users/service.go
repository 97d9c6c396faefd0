package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/auth"
)

const userColumns = `id, user_name, nick_name, password, email, phone, note, head_img, open_id, register_type, is_delete, create_time, update_time`

// Service provides user account storage backed by database/sql.
type Service struct {
	db *sql.DB
}

// NewService creates a user service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s scanner) (*User, error) {
	u := &User{}
	err := s.Scan(
		&u.ID, &u.UserName, &u.NickName, &u.Password, &u.Email, &u.Phone,
		&u.Note, &u.HeadImg, &u.OpenID, &u.RegisterType, &u.IsDelete,
		&u.CreateTime, &u.UpdateTime,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// List returns a page of non-deleted users. When search is non-empty it is
// matched as a substring against user name, nick name, email, and note.
func (s *Service) List(ctx context.Context, search string, pageNo, pageSize int) ([]User, int64, error) {
	where := "is_delete = FALSE"
	args := []interface{}{}
	if search != "" {
		where += " AND (user_name LIKE $1 OR nick_name LIKE $1 OR email LIKE $1 OR note LIKE $1)"
		args = append(args, "%"+search+"%")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM users WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY id LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, pageNo*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// Get returns a non-deleted user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 AND is_delete = FALSE", userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByUserName returns a non-deleted user by user name.
func (s *Service) GetByUserName(ctx context.Context, userName string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE user_name = $1 AND is_delete = FALSE", userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, userName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", apperr.ErrNotFound, userName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByOpenID returns the non-deleted user bound to an external identity.
func (s *Service) GetByOpenID(ctx context.Context, openID string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE open_id = $1 AND is_delete = FALSE", userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, openID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: open id not bound", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListByIDs returns the non-deleted users among the given ids.
func (s *Service) ListByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM users WHERE is_delete = FALSE AND id IN (%s) ORDER BY id",
		userColumns, placeholders(1, len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// takenUserNames returns which of the given names are already used by
// non-deleted users. Soft-deleted rows do not block reuse.
func (s *Service) takenUserNames(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}
	query := fmt.Sprintf("SELECT user_name FROM users WHERE is_delete = FALSE AND user_name IN (%s)",
		placeholders(1, len(names)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check user names: %w", err)
	}
	defer rows.Close()

	var taken []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		taken = append(taken, name)
	}
	return taken, rows.Err()
}

// Create inserts the given accounts with hashed passwords. All names must be
// unused among non-deleted users or the whole batch is rejected.
func (s *Service) Create(ctx context.Context, newUsers []NewUser) error {
	if len(newUsers) == 0 {
		return fmt.Errorf("%w: no users given", apperr.ErrInvalidArgument)
	}
	names := make([]string, 0, len(newUsers))
	for _, nu := range newUsers {
		if nu.UserName == "" || nu.Password == "" {
			return fmt.Errorf("%w: user name and password are required", apperr.ErrInvalidArgument)
		}
		names = append(names, nu.UserName)
	}

	taken, err := s.takenUserNames(ctx, names)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: user name already taken: %s", apperr.ErrConflict, strings.Join(taken, ", "))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, nu := range newUsers {
		hash, err := auth.HashPassword(nu.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (user_name, nick_name, password, email, phone, note, register_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			nu.UserName, nu.NickName, hash, nu.Email, nu.Phone, nu.Note, auth.RegisterTypeAccount)
		if err != nil {
			return fmt.Errorf("failed to create user %q: %w", nu.UserName, err)
		}
	}
	return tx.Commit()
}

// CreateSSO provisions an account for a first-time external login. The user
// arrives with OpenID and RegisterType set; the id is filled in on return.
func (s *Service) CreateSSO(ctx context.Context, u *User) error {
	if u.UserName == "" || u.OpenID == "" {
		return fmt.Errorf("%w: user name and open id are required", apperr.ErrInvalidArgument)
	}
	taken, err := s.takenUserNames(ctx, []string{u.UserName})
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: user name already taken: %s", apperr.ErrConflict, u.UserName)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (user_name, nick_name, email, head_img, open_id, register_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		u.UserName, u.NickName, u.Email, u.HeadImg, u.OpenID, u.RegisterType).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to provision user: %w", err)
	}
	return nil
}

// BindOpenID attaches an external identity to an existing account. An open id
// already bound to a different account is a conflict.
func (s *Service) BindOpenID(ctx context.Context, userID int64, openID string, registerType auth.RegisterType) error {
	if openID == "" {
		return fmt.Errorf("%w: open id is required", apperr.ErrInvalidArgument)
	}

	var boundTo int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE open_id = $1 AND is_delete = FALSE", openID).Scan(&boundTo)
	if err == nil && boundTo != userID {
		return fmt.Errorf("%w: identity already bound to another account", apperr.ErrConflict)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check identity binding: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET open_id = $1, register_type = $2, update_time = CURRENT_TIMESTAMP
		WHERE id = $3 AND is_delete = FALSE`,
		openID, registerType, userID)
	if err != nil {
		return fmt.Errorf("failed to bind identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
	}
	return nil
}

// Update edits a user's profile fields.
func (s *Service) Update(ctx context.Context, id int64, edit ProfileEdit) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET nick_name = $1, email = $2, phone = $3, note = $4, head_img = $5,
			update_time = CURRENT_TIMESTAMP
		WHERE id = $6 AND is_delete = FALSE`,
		edit.NickName, edit.Email, edit.Phone, edit.Note, edit.HeadImg, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return nil
}

// Remove soft-deletes the given users. Already-deleted ids are skipped; the
// count of rows actually flipped is returned.
func (s *Service) Remove(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", apperr.ErrInvalidArgument)
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`
		UPDATE users SET is_delete = TRUE, update_time = CURRENT_TIMESTAMP
		WHERE is_delete = FALSE AND id IN (%s)`, placeholders(1, len(ids)))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove users: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of non-deleted users.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE is_delete = FALSE").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// placeholders renders "$start,$start+1,..." for n parameters.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}
