package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
)

const minPasswordLength = 6

// AccountCreator persists a principal.
type AccountCreator interface {
	Create(ctx context.Context, loginName, passwordHash string, role principal.Role) (*principal.Principal, error)
}

// Hasher digests passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// CreateAccount provisions a principal with any role, including ADMIN which
// public registration never grants.
func CreateAccount(ctx context.Context, store AccountCreator, hasher Hasher, loginName, password, role string) (*principal.Principal, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" {
		return nil, fmt.Errorf("%w: login name is required", shared.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", shared.ErrValidation, minPasswordLength)
	}
	r, err := principal.ParseRole(role)
	if err != nil {
		return nil, err
	}
	digest, err := hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}
	return store.Create(ctx, loginName, digest, r)
}
