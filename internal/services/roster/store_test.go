package roster_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/domain"
	"cipherlink/internal/services/roster"
)

var (
	bob   = domain.Peer{ID: "bob", Name: "bob", PublicKey: "PEM-B"}
	carol = domain.Peer{ID: "carol", Name: "carol", PublicKey: "PEM-C"}
	alice = domain.Peer{ID: "alice", Name: "alice", PublicKey: "PEM-A"}
)

type snapshot struct {
	peers   []domain.Peer
	unread  map[domain.PeerID]int
	bobLog  []domain.Entry
	focused domain.PeerID
}

func capture(s *roster.Store) snapshot {
	f, _ := s.Focused()
	return snapshot{peers: s.Peers(), unread: s.Unread(), bobLog: s.History("bob"), focused: f}
}

func TestApplySnapshot_Idempotent(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob, carol})
	_, err := s.RecordIncoming("bob", domain.Entry{Sender: "bob", Plaintext: "hi"}, false)
	require.NoError(t, err)
	require.NoError(t, s.Focus("carol"))

	s.ApplySnapshot([]domain.Peer{bob, carol})
	once := capture(s)
	s.ApplySnapshot([]domain.Peer{bob, carol})
	require.Equal(t, once, capture(s))
	require.Equal(t, 1, once.unread["bob"])
}

func TestApplySnapshot_InitialisesUnread(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob})
	require.Equal(t, map[domain.PeerID]int{"bob": 0}, s.Unread())
}

func TestApplySnapshot_PrunesRemovedPeers(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob, carol})
	require.NoError(t, s.RecordOutgoing("bob", domain.Entry{Sender: "alice", Plaintext: "hi"}))
	_, err := s.RecordIncoming("bob", domain.Entry{Sender: "bob", Plaintext: "yo"}, false)
	require.NoError(t, err)
	_, err = s.RecordIncoming("carol", domain.Entry{Sender: "carol", Plaintext: "hey"}, false)
	require.NoError(t, err)
	require.NoError(t, s.Focus("bob"))

	s.ApplySnapshot([]domain.Peer{})

	require.Empty(t, s.Peers())
	require.Empty(t, s.Unread())
	require.Empty(t, s.History("bob"))
	require.Empty(t, s.History("carol"))
	_, ok := s.Focused()
	require.False(t, ok, "focus on a removed peer must be cleared")
}

func TestApplySnapshot_KeepsSurvivors(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob, carol})
	_, err := s.RecordIncoming("carol", domain.Entry{Sender: "carol", Plaintext: "hey"}, false)
	require.NoError(t, err)

	s.ApplySnapshot([]domain.Peer{carol})
	require.Len(t, s.History("carol"), 1)
	require.Equal(t, map[domain.PeerID]int{"carol": 1}, s.Unread())
}

func TestApplySnapshot_ExcludesSelf(t *testing.T) {
	s := roster.New()
	s.SetSelf("alice")
	s.ApplySnapshot([]domain.Peer{alice, bob})

	require.Equal(t, []domain.Peer{bob}, s.Peers())
	require.ErrorIs(t, s.Focus("alice"), domain.ErrUnknownPeer)
	require.ErrorIs(t, s.RecordOutgoing("alice", domain.Entry{Plaintext: "x"}), domain.ErrUnknownPeer)
}

func TestRecordIncoming_UnfocusedIncrementsOnlyThatPeer(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob, carol})

	for i := 1; i <= 3; i++ {
		d, err := s.RecordIncoming("bob", domain.Entry{Sender: "bob", Plaintext: "m"}, false)
		require.NoError(t, err)
		require.Equal(t, domain.Queued, d)
		require.Equal(t, i, s.Unread()["bob"])
		require.Equal(t, 0, s.Unread()["carol"])
	}
}

func TestRecordIncoming_Focused(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob})

	d, err := s.RecordIncoming("bob", domain.Entry{Sender: "bob", Plaintext: "hi"}, true)
	require.NoError(t, err)
	require.Equal(t, domain.Delivered, d)
	require.Equal(t, 0, s.Unread()["bob"])
	require.Equal(t, []domain.Entry{{Sender: "bob", Plaintext: "hi"}}, s.History("bob"))
}

func TestRecordIncoming_UnknownPeer(t *testing.T) {
	s := roster.New()
	_, err := s.RecordIncoming("mallory", domain.Entry{Plaintext: "x"}, false)
	require.ErrorIs(t, err, domain.ErrUnknownPeer)
	require.Empty(t, s.Unread())
}

func TestReceive_UsesFocus(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob, carol})
	require.NoError(t, s.Focus("carol"))

	d, err := s.Receive("bob", domain.Entry{Sender: "bob", Plaintext: "hi"})
	require.NoError(t, err)
	require.Equal(t, domain.Queued, d)
	require.Equal(t, 1, s.Unread()["bob"])

	d, err = s.Receive("carol", domain.Entry{Sender: "carol", Plaintext: "yo"})
	require.NoError(t, err)
	require.Equal(t, domain.Delivered, d)
	require.Equal(t, 0, s.Unread()["carol"])
}

func TestFocus_ResetsUnread(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob})
	_, _ = s.RecordIncoming("bob", domain.Entry{Plaintext: "a"}, false)
	_, _ = s.RecordIncoming("bob", domain.Entry{Plaintext: "b"}, false)

	require.NoError(t, s.Focus("bob"))
	require.Equal(t, 0, s.Unread()["bob"])
	require.Len(t, s.History("bob"), 2)

	id, ok := s.Focused()
	require.True(t, ok)
	require.Equal(t, domain.PeerID("bob"), id)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{bob})
	require.NoError(t, s.RecordOutgoing("bob", domain.Entry{Sender: "alice", Plaintext: "hi"}))

	h := s.History("bob")
	h[0].Plaintext = "changed"
	require.Equal(t, "hi", s.History("bob")[0].Plaintext)
	require.True(t, s.History("bob")[0].Self)
}

func TestPeers_SortedAndLookup(t *testing.T) {
	s := roster.New()
	s.ApplySnapshot([]domain.Peer{carol, bob})
	require.Equal(t, []domain.Peer{bob, carol}, s.Peers())

	p, ok := s.Lookup("carol")
	require.True(t, ok)
	require.Equal(t, carol, p)

	_, ok = s.Lookup("dave")
	require.False(t, ok)
}

func TestReset(t *testing.T) {
	s := roster.New()
	s.SetSelf("alice")
	s.ApplySnapshot([]domain.Peer{bob})
	s.Reset()

	s.ApplySnapshot([]domain.Peer{alice})
	require.Equal(t, []domain.Peer{alice}, s.Peers())
}
