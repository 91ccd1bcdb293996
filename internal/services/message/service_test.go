package message_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/metrics"
	"cipherlink/internal/services/message"
	"cipherlink/internal/services/roster"
)

type fixture struct {
	roster *roster.Store
	svc    *message.Service
	bobKey *rsa.PrivateKey
	ownKey *rsa.PrivateKey
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	bobKey, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	ownKey, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	bobPEM, err := crypto.MarshalPublicKeyPEM(&bobKey.PublicKey)
	require.NoError(t, err)

	r := roster.New()
	r.SetSelf("alice")
	r.ApplySnapshot([]domain.Peer{
		{ID: "bob", Name: "bob", PublicKey: bobPEM},
		{ID: "carol", Name: "carol", PublicKey: "not a key"},
	})
	return fixture{roster: r, svc: message.New(r, nil), bobKey: bobKey, ownKey: ownKey}
}

func TestSeal_RecordsAndEncrypts(t *testing.T) {
	f := newFixture(t)

	ct, err := f.svc.Seal("alice", "bob", "hi")
	require.NoError(t, err)

	pt, err := crypto.Decrypt(f.bobKey, ct)
	require.NoError(t, err)
	require.Equal(t, "hi", pt)
	require.Equal(t, []domain.Entry{{Sender: "alice", Plaintext: "hi", Self: true}}, f.roster.History("bob"))
}

func TestSeal_MalformedKeyRecordsInlineError(t *testing.T) {
	f := newFixture(t)

	ct, err := f.svc.Seal("alice", "carol", "hi")
	require.Empty(t, ct)
	require.ErrorIs(t, err, domain.ErrMalformedKey)

	h := f.roster.History("carol")
	require.Len(t, h, 1)
	require.True(t, h[0].Error)
	require.True(t, h[0].Self)
	require.True(t, strings.HasPrefix(h[0].Plaintext, "Couldn't encrypt this message, reason: "))
}

func TestSeal_TooLarge(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Seal("alice", "bob", strings.Repeat("x", 500))
	require.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	require.True(t, f.roster.History("bob")[0].Error)
}

func TestSeal_UnknownPeer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Seal("alice", "dave", "hi")
	require.ErrorIs(t, err, domain.ErrUnknownPeer)
}

func TestOpen_Queued(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.roster.Focus("carol"))

	ct, err := crypto.Encrypt(&f.ownKey.PublicKey, "hi")
	require.NoError(t, err)

	entry, d, err := f.svc.Open(f.ownKey, "bob", ct)
	require.NoError(t, err)
	require.Equal(t, domain.Queued, d)
	require.Equal(t, domain.Entry{Sender: "bob", Plaintext: "hi"}, entry)
	require.Equal(t, 1, f.roster.Unread()["bob"])
}

func TestOpen_Delivered(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.roster.Focus("bob"))

	ct, err := crypto.Encrypt(&f.ownKey.PublicKey, "hi")
	require.NoError(t, err)

	_, d, err := f.svc.Open(f.ownKey, "bob", ct)
	require.NoError(t, err)
	require.Equal(t, domain.Delivered, d)
}

func TestOpen_WrongKeyBecomesPlaceholder(t *testing.T) {
	f := newFixture(t)

	ct, err := crypto.Encrypt(&f.bobKey.PublicKey, "not for us")
	require.NoError(t, err)

	failures := testutil.ToFloat64(metrics.DecryptFailures)
	entry, _, err := f.svc.Open(f.ownKey, "bob", ct)
	require.NoError(t, err)
	require.True(t, entry.Error)
	require.Equal(t, "Couldn't decrypt this message, reason: message was not encrypted for this key", entry.Plaintext)
	require.Len(t, f.roster.History("bob"), 1)
	require.Equal(t, failures+1, testutil.ToFloat64(metrics.DecryptFailures))
}

func TestOpen_Garbage(t *testing.T) {
	f := newFixture(t)
	entry, _, err := f.svc.Open(f.ownKey, "bob", "@@@")
	require.NoError(t, err)
	require.True(t, entry.Error)
	require.Contains(t, entry.Plaintext, "corrupted")
}

func TestOpen_UnknownSenderDropped(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Open(f.ownKey, "mallory", "x")
	require.ErrorIs(t, err, domain.ErrUnknownPeer)
	require.Empty(t, f.roster.History("mallory"))
}
