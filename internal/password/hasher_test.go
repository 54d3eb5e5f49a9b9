package password

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "correctpassword")
	require.NoError(t, err)
	assert.NotEqual(t, "correctpassword", digest)

	assert.True(t, h.Verify(ctx, "correctpassword", digest))
	assert.False(t, h.Verify(ctx, "wrongpassword", digest))
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash(context.Background(), "same")
	require.NoError(t, err)
	b, err := h.Hash(context.Background(), "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	assert.False(t, h.Verify(context.Background(), "pw", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify(context.Background(), "pw", ""))
}

func TestVerifyCancelledContext(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, err := h.Hash(context.Background(), "pw")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, h.Verify(ctx, "pw", digest))

	_, err = h.Hash(ctx, "pw")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashEmpty(t *testing.T) {
	_, err := NewHasher(0).Hash(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).Cost())
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
}

func TestDigestsFromDefaultCostVerify(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("validpassword"), DefaultCost)
	require.NoError(t, err)
	assert.True(t, NewHasher(bcrypt.MinCost).Verify(context.Background(), "validpassword", string(legacy)))
}
