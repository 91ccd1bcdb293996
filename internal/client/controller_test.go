package client_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/client"
	"cipherlink/internal/domain"
	"cipherlink/internal/relay"
	"cipherlink/internal/services/identity"
	"cipherlink/internal/store"
	"cipherlink/internal/transport"
)

const waitFor = 10 * time.Second

func startRelay(t *testing.T) string {
	t.Helper()
	hub := relay.New(store.NewMemoryAccountStore())
	srv := httptest.NewServer(hub.Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + relay.PathWebsocket
}

type user struct {
	ctrl  *client.Controller
	store domain.SessionStore
	dir   string

	mu    sync.Mutex
	inbox []domain.Entry
	busy  []bool
}

func newUser(t *testing.T, url, dir string) *user {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	st, err := store.NewFileStore(dir)
	require.NoError(t, err)
	keys := identity.New(st, identity.WithKeyBits(1024))

	u := &user{store: st, dir: dir}
	u.ctrl = client.New(keys, transport.NewDialer(time.Second), url, nil)
	u.ctrl.OnIncoming(func(_ domain.PeerID, e domain.Entry, _ domain.Delivery) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.inbox = append(u.inbox, e)
	})
	u.ctrl.Observe(client.ObserverFuncs{Busy: func(b bool) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.busy = append(u.busy, b)
	}})
	t.Cleanup(func() { _ = u.ctrl.Close() })
	return u
}

func (u *user) received() []domain.Entry {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.Entry(nil), u.inbox...)
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)
	return c
}

func connected(t *testing.T, url string) *user {
	t.Helper()
	u := newUser(t, url, "")
	require.NoError(t, u.ctrl.Connect(ctx(t)))
	st, err := u.ctrl.Settle(ctx(t))
	require.NoError(t, err)
	require.Equal(t, domain.AwaitingCredentials, st)
	return u
}

func TestController_InputValidation(t *testing.T) {
	url := startRelay(t)
	u := newUser(t, url, "")

	require.ErrorIs(t, u.ctrl.Login(ctx(t), "alice", "pw"), domain.ErrNotAuthenticated)
	require.NoError(t, u.ctrl.Connect(ctx(t)))
	_, _ = u.ctrl.Settle(ctx(t))

	require.ErrorIs(t, u.ctrl.Login(ctx(t), "  ", "pw"), domain.ErrEmptyCredentials)
	require.ErrorIs(t, u.ctrl.Login(ctx(t), "alice", ""), domain.ErrEmptyCredentials)
	require.ErrorIs(t, u.ctrl.Register(ctx(t), "alice", "pw", ""), domain.ErrEmptyCredentials)
	require.ErrorIs(t, u.ctrl.Register(ctx(t), "alice", "pw", "pw2"), domain.ErrPasswordMismatch)
	require.Equal(t, domain.AwaitingCredentials, u.ctrl.State())
	require.ErrorIs(t, u.ctrl.Send("hi"), domain.ErrNoFocus)

	// Confirmation is compared after trimming, like the digest sent.
	require.NoError(t, u.ctrl.Register(ctx(t), "alice", "secret ", "secret"))
	require.Equal(t, domain.Authenticated, u.ctrl.State())
}

func TestController_ConnectAfterClose(t *testing.T) {
	url := startRelay(t)
	u := connected(t, url)

	require.NoError(t, u.ctrl.Close())
	require.ErrorIs(t, u.ctrl.Connect(ctx(t)), domain.ErrInvalidState)
	require.Equal(t, domain.Disconnected, u.ctrl.State())
}

func TestController_RegisterAndChat(t *testing.T) {
	url := startRelay(t)
	alice := connected(t, url)
	bob := connected(t, url)

	require.NoError(t, alice.ctrl.Register(ctx(t), "alice", "secret", "secret"))
	require.NoError(t, bob.ctrl.Register(ctx(t), "bob", "hunter2", "hunter2"))
	require.Equal(t, domain.Username("alice"), alice.ctrl.Self())

	require.Eventually(t, func() bool { return len(alice.ctrl.Peers()) == 1 }, waitFor, 10*time.Millisecond)
	peer, history, err := alice.ctrl.SelectPeer("bob")
	require.NoError(t, err)
	require.Equal(t, domain.PeerID("bob"), peer.ID)
	require.Empty(t, history)

	require.NoError(t, alice.ctrl.Send("hi"))
	require.Equal(t, []domain.Entry{{Sender: "alice", Plaintext: "hi", Self: true}}, alice.ctrl.History("bob"))

	require.Eventually(t, func() bool { return len(bob.received()) == 1 }, waitFor, 10*time.Millisecond)
	require.Equal(t, domain.Entry{Sender: "alice", Plaintext: "hi"}, bob.received()[0])
	require.Equal(t, 1, bob.ctrl.Unread()["alice"], "bob has not focused alice")

	_, history, err = bob.ctrl.SelectPeer("alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 0, bob.ctrl.Unread()["alice"])

	alice.mu.Lock()
	require.Equal(t, []bool{true, false}, alice.busy)
	alice.mu.Unlock()
}

func TestController_WrongPasswordIsRecoverable(t *testing.T) {
	url := startRelay(t)
	alice := connected(t, url)
	require.NoError(t, alice.ctrl.Register(ctx(t), "alice", "secret", "secret"))
	require.NoError(t, alice.ctrl.Logout())

	again := connected(t, url)
	err := again.ctrl.Login(ctx(t), "alice", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, domain.AwaitingCredentials, again.ctrl.State())

	require.NoError(t, again.ctrl.Login(ctx(t), "alice", "secret"))
	require.Equal(t, domain.Authenticated, again.ctrl.State())
}

func TestController_ResumesPersistedSession(t *testing.T) {
	url := startRelay(t)
	dir := t.TempDir()

	first := newUser(t, url, dir)
	require.NoError(t, first.ctrl.Connect(ctx(t)))
	_, _ = first.ctrl.Settle(ctx(t))
	require.NoError(t, first.ctrl.Register(ctx(t), "alice", "secret", "secret"))
	fp, err := first.ctrl.Fingerprint()
	require.NoError(t, err)
	require.NoError(t, first.ctrl.Close())

	second := newUser(t, url, dir)
	require.NoError(t, second.ctrl.Connect(ctx(t)))
	st, err := second.ctrl.Settle(ctx(t))
	require.NoError(t, err)
	require.Equal(t, domain.Authenticated, st)
	require.Equal(t, domain.Username("alice"), second.ctrl.Self())

	fp2, err := second.ctrl.Fingerprint()
	require.NoError(t, err)
	require.Equal(t, fp, fp2)
}

func TestController_LogoutForgetsSession(t *testing.T) {
	url := startRelay(t)
	dir := t.TempDir()

	first := newUser(t, url, dir)
	require.NoError(t, first.ctrl.Connect(ctx(t)))
	_, _ = first.ctrl.Settle(ctx(t))
	require.NoError(t, first.ctrl.Register(ctx(t), "alice", "secret", "secret"))
	require.NoError(t, first.ctrl.Logout())
	require.Equal(t, domain.Disconnected, first.ctrl.State())

	_, ok, err := first.store.LoadSession()
	require.NoError(t, err)
	require.False(t, ok)

	second := newUser(t, url, dir)
	require.NoError(t, second.ctrl.Connect(ctx(t)))
	st, err := second.ctrl.Settle(ctx(t))
	require.NoError(t, err)
	require.Equal(t, domain.AwaitingCredentials, st)
}

func TestController_SameCredentialsSameKey(t *testing.T) {
	url := startRelay(t)
	alice := connected(t, url)
	require.NoError(t, alice.ctrl.Register(ctx(t), "alice", "secret", "secret"))
	fp, err := alice.ctrl.Fingerprint()
	require.NoError(t, err)
	require.NoError(t, alice.ctrl.Logout())

	again := connected(t, url)
	require.NoError(t, again.ctrl.Login(ctx(t), "alice", "secret"))
	fp2, err := again.ctrl.Fingerprint()
	require.NoError(t, err)
	require.Equal(t, fp, fp2, "keys are re-derived from the credentials")
}
