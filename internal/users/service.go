package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kis-labs/webbuilder/internal/actionlog"
	"github.com/kis-labs/webbuilder/internal/gate"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListDeactivated(ctx context.Context) ([]Account, error)
	Find(ctx context.Context, id int64) (*principal.Principal, error)
	SetDeletedAt(ctx context.Context, id int64, at *time.Time) error
	UpdatePassword(ctx context.Context, id int64, digest string) error
}

// RepositoryFactory binds a RepositoryPort to the request's connection.
type RepositoryFactory func(conn db.Conn) RepositoryPort

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) bool
}

// Service handles account administration.
type Service struct {
	repos    RepositoryFactory
	hasher   Hasher
	recorder actionlog.Recorder
	now      func() time.Time
}

// NewService builds Service instance. A nil factory uses NewRepository.
func NewService(repos RepositoryFactory, hasher Hasher, recorder actionlog.Recorder) *Service {
	if repos == nil {
		repos = func(conn db.Conn) RepositoryPort { return NewRepository(conn) }
	}
	if recorder == nil {
		recorder = actionlog.Nop{}
	}
	return &Service{repos: repos, hasher: hasher, recorder: recorder, now: time.Now}
}

// ListOthers returns every account except the caller's.
func (s *Service) ListOthers(ctx context.Context, g gate.Grant) ([]Account, error) {
	all, err := s.repos(g.Conn).ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, shared.NotFound("No users found")
	}
	others := make([]Account, 0, len(all))
	for _, a := range all {
		if a.ID != g.Principal.ID {
			others = append(others, a)
		}
	}
	return others, nil
}

// ListDeactivated returns soft-deleted accounts.
func (s *Service) ListDeactivated(ctx context.Context, g gate.Grant) ([]Account, error) {
	accounts, err := s.repos(g.Conn).ListDeactivated(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, shared.NotFound("No deactivated users found")
	}
	return accounts, nil
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, g gate.Grant, id int64) (*Account, error) {
	p, err := s.find(ctx, s.repos(g.Conn), id)
	if err != nil {
		return nil, err
	}
	return &Account{ID: p.ID, LoginName: p.LoginName, Role: p.Role, DeletedAt: p.DeletedAt}, nil
}

// Deactivate soft-deletes id.
func (s *Service) Deactivate(ctx context.Context, g gate.Grant, id int64) error {
	repo := s.repos(g.Conn)
	if _, err := s.find(ctx, repo, id); err != nil {
		return err
	}
	at := s.now().UTC()
	if err := repo.SetDeletedAt(ctx, id, &at); err != nil {
		return notFoundAsPrincipal(err)
	}
	s.recorder.Record(ctx, g.Principal.ID, actionlog.ActionDeactivate)
	return nil
}

// Restore reactivates id. Restoring an active account is an error.
func (s *Service) Restore(ctx context.Context, g gate.Grant, id int64) error {
	repo := s.repos(g.Conn)
	p, err := s.find(ctx, repo, id)
	if err != nil {
		return err
	}
	if p.IsActive() {
		return shared.ErrAlreadyActive
	}
	if err := repo.SetDeletedAt(ctx, id, nil); err != nil {
		return notFoundAsPrincipal(err)
	}
	s.recorder.Record(ctx, g.Principal.ID, actionlog.ActionRestore)
	return nil
}

// ChangePassword replaces id's password after checking the old one. Only
// ADMIN callers may change another account's password.
func (s *Service) ChangePassword(ctx context.Context, g gate.Grant, id int64, change PasswordChange) error {
	if change.NewPassword != change.ConfirmNewPassword {
		return fmt.Errorf("%w: new passwords do not match", shared.ErrValidation)
	}
	if id != g.Principal.ID && g.Principal.Role != principal.RoleAdmin {
		return shared.ErrAccessDenied
	}
	repo := s.repos(g.Conn)
	p, err := s.find(ctx, repo, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(ctx, change.OldPassword, p.PasswordHash) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: old password is incorrect", shared.ErrValidation)
	}
	digest, err := s.hasher.Hash(ctx, change.NewPassword)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	if err := repo.UpdatePassword(ctx, id, digest); err != nil {
		return notFoundAsPrincipal(err)
	}
	s.recorder.Record(ctx, g.Principal.ID, actionlog.ActionPasswordChange)
	return nil
}

func (s *Service) find(ctx context.Context, repo RepositoryPort, id int64) (*principal.Principal, error) {
	p, err := repo.Find(ctx, id)
	if err != nil {
		return nil, notFoundAsPrincipal(err)
	}
	return p, nil
}

func notFoundAsPrincipal(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrPrincipalNotFound
	}
	return err
}
