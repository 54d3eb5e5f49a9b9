package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	conn       db.Conn
	principals *principal.Repository
}

// NewRepository constructs a repository over conn.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn, principals: principal.NewRepository(conn)}
}

// ListAccounts returns every principal, active or not.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	return r.list(ctx, `SELECT id, login_name, role, deleted_at FROM users ORDER BY id`)
}

// ListDeactivated returns soft-deleted principals.
func (r *Repository) ListDeactivated(ctx context.Context) ([]Account, error) {
	return r.list(ctx, `SELECT id, login_name, role, deleted_at FROM users WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC, id`)
}

func (r *Repository) list(ctx context.Context, query string) ([]Account, error) {
	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Account, error) {
		var (
			a    Account
			role string
		)
		err := row.Scan(&a.ID, &a.LoginName, &role, &a.DeletedAt)
		a.Role = principal.Role(role)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	return accounts, nil
}

// Find returns the principal with id, or shared.ErrNotFound.
func (r *Repository) Find(ctx context.Context, id int64) (*principal.Principal, error) {
	return r.principals.FindByID(ctx, id)
}

// SetDeletedAt marks id deactivated at the given time, or restores it when at
// is nil.
func (r *Repository) SetDeletedAt(ctx context.Context, id int64, at *time.Time) error {
	tag, err := r.conn.Exec(ctx, `UPDATE users SET deleted_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("users: set deleted_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password digest.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, digest string) error {
	tag, err := r.conn.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, digest)
	if err != nil {
		return fmt.Errorf("users: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
