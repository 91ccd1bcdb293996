package crypto_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/crypto"
)

func TestDeriveSeed_Deterministic(t *testing.T) {
	digest := crypto.HashCredential("secret")
	a := crypto.DeriveSeed("alice", digest)
	b := crypto.DeriveSeed("alice", digest)
	require.Equal(t, a, b)
	require.Len(t, a, 32)
	require.NotEqual(t, a, crypto.DeriveSeed("bob", digest))
}

func TestGenerateKey_Reproducible(t *testing.T) {
	seed := crypto.DeriveSeed("alice", crypto.HashCredential("secret"))

	k1, err := crypto.GenerateKey(context.Background(), seed, crypto.KeyBits)
	require.NoError(t, err)
	k2, err := crypto.GenerateKey(context.Background(), seed, crypto.KeyBits)
	require.NoError(t, err)

	require.Equal(t, crypto.KeyBits, k1.N.BitLen())
	require.Equal(t, crypto.PublicExponent, k1.E)
	require.Zero(t, k1.N.Cmp(k2.N))
	require.Zero(t, k1.D.Cmp(k2.D))
	require.NoError(t, k1.Validate())

	p1, err := crypto.MarshalPrivateKeyPEM(k1)
	require.NoError(t, err)
	p2, err := crypto.MarshalPrivateKeyPEM(k2)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestGenerateKey_DifferentSeeds(t *testing.T) {
	k1 := testKey(t)
	k2, err := crypto.GenerateKey(context.Background(), crypto.DeriveSeed("bob", "x"), crypto.KeyBits)
	require.NoError(t, err)
	require.NotZero(t, k1.N.Cmp(k2.N))
}

func TestGenerateKey_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := crypto.GenerateKey(ctx, crypto.DeriveSeed("alice", "x"), crypto.KeyBits)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateKey_RejectsBadInput(t *testing.T) {
	_, err := crypto.GenerateKey(context.Background(), nil, crypto.KeyBits)
	require.Error(t, err)
	_, err = crypto.GenerateKey(context.Background(), []byte{1}, 512)
	require.Error(t, err)
}
