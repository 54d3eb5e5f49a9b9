package principal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/shared"
)

const selectColumns = `id, login_name, password_hash, role, created_at, deleted_at`

// Repository reads and writes principals on a bound connection.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs a repository over conn.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// FindByID returns the principal with id, or shared.ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Principal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	return scanPrincipal(row)
}

// FindByLoginName returns the principal with loginName, or shared.ErrNotFound.
func (r *Repository) FindByLoginName(ctx context.Context, loginName string) (*Principal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE login_name = $1`, loginName)
	return scanPrincipal(row)
}

// Create inserts a new active principal.
func (r *Repository) Create(ctx context.Context, loginName, passwordHash string, role Role) (*Principal, error) {
	p := &Principal{LoginName: loginName, PasswordHash: passwordHash, Role: role}
	err := r.conn.QueryRow(ctx,
		`INSERT INTO users (login_name, password_hash, role) VALUES ($1, $2, $3) RETURNING id, created_at`,
		loginName, passwordHash, string(role),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrLoginNameTaken
		}
		return nil, fmt.Errorf("principal: create: %w", err)
	}
	return p, nil
}

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var (
		p    Principal
		role string
	)
	if err := row.Scan(&p.ID, &p.LoginName, &p.PasswordHash, &role, &p.CreatedAt, &p.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("principal: scan: %w", err)
	}
	p.Role = Role(role)
	return &p, nil
}

// Acquirer hands out the shared data store handle.
type Acquirer interface {
	Acquire(ctx context.Context) (db.Handle, error)
}

// Store resolves principals through the shared connection manager, for
// flows that run before a request has been authorised.
type Store struct {
	acquirer Acquirer
}

// NewStore constructs a Store.
func NewStore(acquirer Acquirer) *Store {
	return &Store{acquirer: acquirer}
}

func (s *Store) repository(ctx context.Context) (*Repository, error) {
	h, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return nil, db.AcquireError(ctx, err)
	}
	return NewRepository(h), nil
}

// FindByID resolves a principal by id.
func (s *Store) FindByID(ctx context.Context, id int64) (*Principal, error) {
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, id)
}

// FindByLoginName resolves a principal by login name.
func (s *Store) FindByLoginName(ctx context.Context, loginName string) (*Principal, error) {
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FindByLoginName(ctx, loginName)
}

// Create registers a new principal.
func (s *Store) Create(ctx context.Context, loginName, passwordHash string, role Role) (*Principal, error) {
	repo, err := s.repository(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, loginName, passwordHash, role)
}
