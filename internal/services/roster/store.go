package roster

import (
	"slices"
	"strings"
	"sync"

	"cipherlink/internal/domain"
)

// Store is the in-memory roster and conversation state of one session. It is
// safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	self    domain.PeerID
	peers   map[domain.PeerID]domain.Peer
	logs    map[domain.PeerID][]domain.Entry
	unread  map[domain.PeerID]int
	focused domain.PeerID
}

// New returns an empty store.
func New() *Store {
	return &Store{
		peers:  make(map[domain.PeerID]domain.Peer),
		logs:   make(map[domain.PeerID][]domain.Entry),
		unread: make(map[domain.PeerID]int),
	}
}

// SetSelf names the local user. The local user is filtered from every
// snapshot so it can never be focused or messaged.
func (s *Store) SetSelf(id domain.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = id
	s.dropLocked(id)
}

// ApplySnapshot replaces the roster wholesale. State for peers missing from
// users is deleted, new peers start with zero unread, and the focus is
// cleared if the focused peer left. Applying the same snapshot twice is a
// no-op the second time.
func (s *Store) ApplySnapshot(users []domain.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[domain.PeerID]domain.Peer, len(users))
	for _, p := range users {
		if p.ID == "" || p.ID == s.self {
			continue
		}
		next[p.ID] = p
	}
	for id := range s.peers {
		if _, ok := next[id]; !ok {
			s.dropLocked(id)
		}
	}
	for id := range next {
		if _, ok := s.unread[id]; !ok {
			s.unread[id] = 0
		}
	}
	s.peers = next
}

func (s *Store) dropLocked(id domain.PeerID) {
	delete(s.peers, id)
	delete(s.logs, id)
	delete(s.unread, id)
	if s.focused == id {
		s.focused = ""
	}
}

// RecordOutgoing appends a self-authored entry to id's log.
func (s *Store) RecordOutgoing(id domain.PeerID, entry domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		return domain.ErrUnknownPeer
	}
	entry.Self = true
	s.logs[id] = append(s.logs[id], entry)
	return nil
}

// RecordIncoming appends entry to id's log. When isFocused is false the
// peer's unread counter is incremented by one and Queued is returned.
func (s *Store) RecordIncoming(id domain.PeerID, entry domain.Entry, isFocused bool) (domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordIncomingLocked(id, entry, isFocused)
}

// Receive is RecordIncoming with the focus taken from the store itself.
func (s *Store) Receive(id domain.PeerID, entry domain.Entry) (domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordIncomingLocked(id, entry, s.focused != "" && s.focused == id)
}

func (s *Store) recordIncomingLocked(id domain.PeerID, entry domain.Entry, isFocused bool) (domain.Delivery, error) {
	if _, ok := s.peers[id]; !ok {
		return 0, domain.ErrUnknownPeer
	}
	entry.Self = false
	s.logs[id] = append(s.logs[id], entry)
	if isFocused {
		return domain.Delivered, nil
	}
	s.unread[id]++
	return domain.Queued, nil
}

// Focus selects id and resets its unread counter. An empty id clears the
// focus.
func (s *Store) Focus(id domain.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.focused = ""
		return nil
	}
	if _, ok := s.peers[id]; !ok {
		return domain.ErrUnknownPeer
	}
	s.focused = id
	s.unread[id] = 0
	return nil
}

// Focused returns the focused peer, if any.
func (s *Store) Focused() (domain.PeerID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused, s.focused != ""
}

// Peer resolves id in the current roster.
func (s *Store) Peer(id domain.PeerID) (domain.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

// Lookup resolves a peer by id or, failing that, by display name.
func (s *Store) Lookup(key string) (domain.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.peers[domain.PeerID(key)]; ok {
		return p, true
	}
	for _, p := range s.peers {
		if p.Name == key {
			return p, true
		}
	}
	return domain.Peer{}, false
}

// Peers lists the roster ordered by display name, then id.
func (s *Store) Peers() []domain.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Peer) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// History returns a copy of id's conversation log.
func (s *Store) History(id domain.PeerID) []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs[id])
}

// Unread returns a snapshot of every unread counter.
func (s *Store) Unread() map[domain.PeerID]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.PeerID]int, len(s.unread))
	for id, n := range s.unread {
		out[id] = n
	}
	return out
}

// Reset forgets everything, including the local user.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = ""
	s.focused = ""
	s.peers = make(map[domain.PeerID]domain.Peer)
	s.logs = make(map[domain.PeerID][]domain.Entry)
	s.unread = make(map[domain.PeerID]int)
}
