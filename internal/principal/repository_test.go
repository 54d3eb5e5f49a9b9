package principal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/shared"
)

type failingAcquirer struct{ err error }

func (f failingAcquirer) Acquire(context.Context) (db.Handle, error) { return nil, f.err }

func TestStoreReportsUnavailableConnection(t *testing.T) {
	store := NewStore(failingAcquirer{err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")})

	_, err := store.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrConnectionUnavailable)
	_, err = store.FindByLoginName(context.Background(), "alice")
	assert.ErrorIs(t, err, shared.ErrConnectionUnavailable)
	_, err = store.Create(context.Background(), "alice", "digest", RoleUser)
	assert.ErrorIs(t, err, shared.ErrConnectionUnavailable)
}

func TestStoreReturnsCallerCancellation(t *testing.T) {
	store := NewStore(failingAcquirer{err: context.Canceled})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FindByID(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, shared.ErrConnectionUnavailable)
}
