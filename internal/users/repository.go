package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/pkg/utils"
)

const userColumns = `id, name, email, password_hash, role, is_deleted, created_at`

type Store struct {
	db utils.DBTX
}

func NewStore(db utils.DBTX) *Store { return &Store{db: db} }

func (s *Store) insert(ctx context.Context, u User) (User, error) {
	const q = `
INSERT INTO users (name, email, password_hash, role, is_deleted, created_at)
VALUES ($1, $2, $3, $4, FALSE, $5)
RETURNING id
`
	err := s.db.QueryRowContext(ctx, q, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return User{}, fmt.Errorf("%w: email %s is already registered", apperr.ErrConflict, u.Email)
		}
		return User{}, apperr.Storage("insert user", err)
	}
	return u, nil
}

func (s *Store) activeByID(ctx context.Context, id int64) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = FALSE`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.NotFound("user", id)
		}
		return User{}, apperr.Storage("get user", err)
	}
	return u, nil
}

func (s *Store) activeByEmail(ctx context.Context, email string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_deleted = FALSE`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.NotFound("user", email)
		}
		return User{}, apperr.Storage("get user by email", err)
	}
	return u, nil
}

func (s *Store) list(ctx context.Context) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE is_deleted = FALSE ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, apperr.Storage("list users", err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Storage("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list users", err)
	}
	return out, nil
}

// update writes the given columns of an active user.
func (s *Store) update(ctx context.Context, id int64, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	// Fixed order keeps placeholders ascending and statements cacheable.
	for _, col := range []string{"name", "email", "role", "password_hash"} {
		v, ok := cols[col]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d AND is_deleted = FALSE`, strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return fmt.Errorf("%w: email is already registered", apperr.ErrConflict)
		}
		return apperr.Storage("update user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("update user", err)
	}
	if n == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

func (s *Store) softDelete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return apperr.Storage("delete user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("delete user", err)
	}
	if n == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (User, error) {
	var u User
	if err := r.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsDeleted, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
