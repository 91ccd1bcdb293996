package relay

import (
	"crypto/subtle"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/metrics"
	"cipherlink/internal/protocol/wire"
	"cipherlink/internal/transport"
	"cipherlink/internal/util/worker"
)

// Rejection reasons sent in login responses.
const (
	ReasonMissingFields   = "Please fill in all fields"
	ReasonBadPublicKey    = "Invalid public key"
	ReasonUserExists      = "User already exists"
	ReasonBadCredentials  = "Wrong username or password"
	ReasonAlreadyLoggedIn = "User already logged in"
	ReasonStoreFailure    = "Account storage unavailable"
)

// Option configures a Hub.
type Option func(*Hub)

// WithTTL sets the idle timeout of a session.
func WithTTL(ttl time.Duration) Option { return func(h *Hub) { h.ttl = ttl } }

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option { return func(h *Hub) { h.log = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

// Hub is the relay state: accounts, online members, resumable offline
// members and every open connection.
type Hub struct {
	accounts domain.AccountStore
	ttl      time.Duration
	log      *log.Logger
	now      func() time.Time

	worker worker.Worker

	mu      sync.Mutex
	online  map[string]*member
	offline map[domain.Token]*member
	conns   map[*transport.Conn]struct{}
}

type member struct {
	name       domain.Username
	token      domain.Token
	pubKey     string
	conn       *transport.Conn
	lastActive time.Time
}

// New returns a Hub backed by accounts.
func New(accounts domain.AccountStore, opts ...Option) *Hub {
	h := &Hub{
		accounts: accounts,
		ttl:      defaultSessionTTL * time.Second,
		now:      time.Now,
		online:   make(map[string]*member),
		offline:  make(map[domain.Token]*member),
		conns:    make(map[*transport.Conn]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = log.New(io.Discard)
	}
	return h
}

// Start runs the idle-session sweeper until Close.
func (h *Hub) Start() {
	interval := max(h.ttl/4, time.Second)
	h.worker.Go(func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-h.worker.HaltCh():
				return
			case <-t.C:
				h.Sweep()
			}
		}
	})
}

// Sweep revokes idle sessions and broadcasts the roster if it changed.
func (h *Hub) Sweep() {
	var out outbox
	h.mu.Lock()
	h.expireLocked(&out)
	h.mu.Unlock()
	out.flush(h.log)
}

// Close stops the sweeper and closes every connection.
func (h *Hub) Close() {
	h.worker.Halt()
	h.mu.Lock()
	conns := make([]*transport.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*transport.Conn]struct{})
	h.online = make(map[string]*member)
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	metrics.RelayOnlineUsers.Set(0)
}

// Online returns the names of the members with a bound socket.
func (h *Hub) Online() []domain.Username {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Username, 0, len(h.online))
	for _, m := range h.online {
		out = append(out, m.name)
	}
	slices.Sort(out)
	return out
}

// serve reads requests from conn until it fails.
func (h *Hub) serve(conn *transport.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	for {
		b, err := conn.ReadMessage()
		if err != nil {
			if !transport.IsClosed(err) {
				h.log.Debug("connection ended", "err", err)
			}
			h.disconnect(conn)
			return
		}
		h.handle(conn, b)
	}
}

func (h *Hub) handle(conn *transport.Conn, b []byte) {
	req, err := wire.DecodeRequest(b)
	if err != nil {
		h.log.Warn("dropping malformed request", "err", err)
		return
	}

	var out outbox
	h.mu.Lock()
	h.expireLocked(&out)
	switch req.Action {
	case wire.ActionRegister:
		h.registerLocked(conn, req, &out)
	case wire.ActionLogin:
		h.loginLocked(conn, req, &out)
	case wire.ActionAuthorize:
		h.authorizeLocked(conn, req, &out)
	case wire.ActionLogout:
		h.logoutLocked(req, &out)
	case wire.ActionMessage:
		h.messageLocked(conn, req, &out)
	default:
		h.log.Warn("dropping unknown action", "action", req.Action)
	}
	h.mu.Unlock()
	out.flush(h.log)
}

func (h *Hub) registerLocked(conn *transport.Conn, req wire.Request, out *outbox) {
	name := domain.Username(strings.TrimSpace(req.Name))
	if reason := checkCredentials(name, req); reason != "" {
		h.rejectLocked(conn, reason, out)
		return
	}
	if _, ok, err := h.accounts.LoadAccount(name); err != nil {
		h.log.Error("load account", "err", err)
		h.rejectLocked(conn, ReasonStoreFailure, out)
		return
	} else if ok {
		h.rejectLocked(conn, ReasonUserExists, out)
		return
	}
	account := domain.Account{Name: name, PasswordDigest: req.Password, PublicKey: req.PubKey}
	if err := h.accounts.SaveAccount(account); err != nil {
		h.log.Error("save account", "err", err)
		h.rejectLocked(conn, ReasonStoreFailure, out)
		return
	}
	h.log.Info("registered", "user", name)
	h.admitLocked(conn, account, out)
}

func (h *Hub) loginLocked(conn *transport.Conn, req wire.Request, out *outbox) {
	name := domain.Username(strings.TrimSpace(req.Name))
	if reason := checkCredentials(name, req); reason != "" {
		h.rejectLocked(conn, reason, out)
		return
	}
	account, ok, err := h.accounts.LoadAccount(name)
	if err != nil {
		h.log.Error("load account", "err", err)
		h.rejectLocked(conn, ReasonStoreFailure, out)
		return
	}
	if !ok || subtle.ConstantTimeCompare([]byte(account.PasswordDigest), []byte(req.Password)) != 1 {
		h.rejectLocked(conn, ReasonBadCredentials, out)
		return
	}
	if account.PublicKey != req.PubKey {
		account.PublicKey = req.PubKey
		if err := h.accounts.SaveAccount(account); err != nil {
			h.log.Warn("public key update not stored", "user", account.Name, "err", err)
		}
	}
	h.admitLocked(conn, account, out)
}

func checkCredentials(name domain.Username, req wire.Request) string {
	if name == "" || req.Password == "" || req.PubKey == "" {
		return ReasonMissingFields
	}
	if _, err := crypto.ParsePublicKeyPEM(req.PubKey); err != nil {
		return ReasonBadPublicKey
	}
	return ""
}

func (h *Hub) rejectLocked(conn *transport.Conn, reason string, out *outbox) {
	metrics.RelayRejectedLogins.Inc()
	out.send(conn, wire.Login{Valid: false, Error: reason})
}

// admitLocked issues a token for account and binds it to conn.
func (h *Hub) admitLocked(conn *transport.Conn, account domain.Account, out *outbox) {
	key := memberKey(account.Name)
	if _, ok := h.online[key]; ok {
		h.rejectLocked(conn, ReasonAlreadyLoggedIn, out)
		return
	}
	for tok, m := range h.offline {
		if memberKey(m.name) == key {
			delete(h.offline, tok)
		}
	}
	m := &member{
		name:       account.Name,
		token:      domain.Token(uuid.NewString()),
		pubKey:     account.PublicKey,
		conn:       conn,
		lastActive: h.now(),
	}
	h.online[key] = m
	h.log.Info("logged in", "user", m.name, "token", crypto.Fingerprint([]byte(m.token)))

	out.send(conn, wire.Login{Valid: true, Token: m.token, Username: m.name, Users: h.rosterLocked()})
	h.broadcastLocked(out)
}

func (h *Hub) authorizeLocked(conn *transport.Conn, req wire.Request, out *outbox) {
	tok := domain.Token(req.Token)
	m := h.byTokenLocked(tok)
	if m == nil {
		m = h.offline[tok]
	}
	if tok == "" || m == nil {
		metrics.RelayRejectedLogins.Inc()
		out.send(conn, wire.Authorization{Valid: false})
		return
	}
	if m.conn != nil && m.conn != conn {
		out.close(m.conn)
	}
	delete(h.offline, tok)
	m.conn = conn
	m.lastActive = h.now()
	h.online[memberKey(m.name)] = m
	h.log.Info("resumed", "user", m.name)

	out.send(conn, wire.Authorization{Valid: true, Users: h.rosterLocked()})
	h.broadcastLocked(out)
}

func (h *Hub) logoutLocked(req wire.Request, out *outbox) {
	tok := domain.Token(req.Token)
	delete(h.offline, tok)
	m := h.byTokenLocked(tok)
	if tok == "" || m == nil {
		return
	}
	delete(h.online, memberKey(m.name))
	out.close(m.conn)
	h.log.Info("logged out", "user", m.name)
	h.broadcastLocked(out)
}

func (h *Hub) messageLocked(conn *transport.Conn, req wire.Request, out *outbox) {
	m := h.byTokenLocked(domain.Token(req.Token))
	if req.Token == "" || m == nil {
		out.send(conn, wire.InvalidUser{})
		return
	}
	m.lastActive = h.now()
	target, ok := h.online[memberKey(domain.Username(req.Target))]
	if !ok {
		h.log.Debug("dropping message for offline user", "from", m.name, "to", req.Target)
		return
	}
	metrics.RelayMessagesRouted.Inc()
	out.send(target.conn, wire.Message{Sender: domain.PeerID(m.name), Message: req.Message})
}

// disconnect parks the member bound to conn so its token can resume.
func (h *Hub) disconnect(conn *transport.Conn) {
	var out outbox
	h.mu.Lock()
	delete(h.conns, conn)
	for key, m := range h.online {
		if m.conn != conn {
			continue
		}
		delete(h.online, key)
		m.conn = nil
		h.offline[m.token] = m
		h.log.Info("went offline", "user", m.name)
		h.broadcastLocked(&out)
		break
	}
	h.mu.Unlock()
	out.flush(h.log)
	_ = conn.Close()
}

// expireLocked revokes online sessions idle for longer than the TTL and
// forgets offline ones past it.
func (h *Hub) expireLocked(out *outbox) {
	now := h.now()
	changed := false
	for key, m := range h.online {
		if now.Sub(m.lastActive) <= h.ttl {
			continue
		}
		h.log.Info("session expired", "user", m.name)
		out.send(m.conn, wire.InvalidUser{})
		out.close(m.conn)
		delete(h.online, key)
		changed = true
	}
	for tok, m := range h.offline {
		if now.Sub(m.lastActive) > h.ttl {
			delete(h.offline, tok)
		}
	}
	if changed {
		h.broadcastLocked(out)
	}
}

func (h *Hub) byTokenLocked(tok domain.Token) *member {
	for _, m := range h.online {
		if m.token == tok {
			return m
		}
	}
	return nil
}

func (h *Hub) rosterLocked() []domain.Peer {
	users := make([]domain.Peer, 0, len(h.online))
	for _, m := range h.online {
		users = append(users, domain.Peer{ID: domain.PeerID(m.name), Name: m.name.String(), PublicKey: m.pubKey})
	}
	slices.SortFunc(users, func(a, b domain.Peer) int { return strings.Compare(a.Name, b.Name) })
	return users
}

func (h *Hub) broadcastLocked(out *outbox) {
	metrics.RelayOnlineUsers.Set(float64(len(h.online)))
	ev := wire.UserlistChange{Users: h.rosterLocked()}
	for _, m := range h.online {
		out.send(m.conn, ev)
	}
}

func memberKey(name domain.Username) string { return strings.ToLower(name.String()) }

// outbox collects writes and closes to perform once h.mu is released, in
// order.
type outbox []func(*log.Logger)

func (o *outbox) send(conn *transport.Conn, ev wire.Event) {
	if conn == nil {
		return
	}
	*o = append(*o, func(l *log.Logger) {
		b, err := wire.EncodeEvent(ev)
		if err != nil {
			l.Error("encode event", "event", ev.Name(), "err", err)
			return
		}
		if err := conn.WriteMessage(b); err != nil {
			l.Debug("write failed", "event", ev.Name(), "err", err)
		}
	})
}

func (o *outbox) close(conn *transport.Conn) {
	if conn == nil {
		return
	}
	*o = append(*o, func(*log.Logger) { _ = conn.Close() })
}

func (o outbox) flush(l *log.Logger) {
	for _, fn := range o {
		fn(l)
	}
}
