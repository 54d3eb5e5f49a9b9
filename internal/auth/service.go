// Package auth implements login, token refresh and registration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kis-labs/webbuilder/internal/actionlog"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
	"github.com/kis-labs/webbuilder/internal/token"
)

const minPasswordLength = 6

// PrincipalStore resolves and registers principals.
type PrincipalStore interface {
	FindByID(ctx context.Context, id int64) (*principal.Principal, error)
	FindByLoginName(ctx context.Context, loginName string) (*principal.Principal, error)
	Create(ctx context.Context, loginName, passwordHash string, role principal.Role) (*principal.Principal, error)
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) bool
}

// TokenCodec issues and verifies token pairs.
type TokenCodec interface {
	IssuePair(principalID int64) (token.Pair, error)
	Verify(ctx context.Context, raw string, kind token.Kind) (token.Claims, error)
}

// Result is returned by Login and Refresh.
type Result struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	PrincipalID  int64  `json:"principalId"`
	LoginName    string `json:"loginName"`
}

// Service wraps authentication business rules.
type Service struct {
	store    PrincipalStore
	hasher   Hasher
	codec    TokenCodec
	recorder actionlog.Recorder
	logger   *slog.Logger
}

// NewService constructs a new Service. A nil recorder discards audit events.
func NewService(store PrincipalStore, hasher Hasher, codec TokenCodec, recorder actionlog.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = actionlog.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, hasher: hasher, codec: codec, recorder: recorder, logger: logger}
}

// Login authenticates loginName and password. Checks run in a fixed order:
// unknown account, then deactivation, then password.
func (s *Service) Login(ctx context.Context, loginName, password string) (*Result, error) {
	p, err := s.store.FindByLoginName(ctx, strings.TrimSpace(loginName))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrPrincipalNotFound
		}
		return nil, err
	}
	if !p.IsActive() {
		return nil, shared.ErrPrincipalDeactivated
	}
	if !s.hasher.Verify(ctx, password, p.PasswordHash) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, shared.ErrInvalidCredential
	}
	result, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, p.ID, actionlog.ActionLogin)
	return result, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented token
// is not revoked and stays usable until it expires.
func (s *Service) Refresh(ctx context.Context, raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, shared.ErrMissingToken
	}
	claims, err := s.codec.Verify(ctx, raw, token.KindRefresh)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Info("refresh token rejected", slog.String("reason", token.Reason(err)))
		return nil, shared.ErrInvalidRefreshToken
	}
	p, err := s.store.FindByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrPrincipalNotFound
		}
		return nil, err
	}
	return s.issue(p)
}

// Register creates an active USER principal.
func (s *Service) Register(ctx context.Context, loginName, password string) (*principal.Principal, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" {
		return nil, fmt.Errorf("%w: loginName is required", shared.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", shared.ErrValidation, minPasswordLength)
	}
	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	p, err := s.store.Create(ctx, loginName, digest, principal.RoleUser)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, p.ID, actionlog.ActionRegister)
	return p, nil
}

func (s *Service) issue(p *principal.Principal) (*Result, error) {
	pair, err := s.codec.IssuePair(p.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: issue tokens: %w", err)
	}
	return &Result{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		PrincipalID:  p.ID,
		LoginName:    p.LoginName,
	}, nil
}
