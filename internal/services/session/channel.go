package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/metrics"
	"cipherlink/internal/protocol/wire"
	"cipherlink/internal/services/identity"
	"cipherlink/internal/services/message"
	"cipherlink/internal/services/roster"
)

// Deps are the collaborators a Channel drives.
type Deps struct {
	Keys     *identity.Service
	Roster   *roster.Store
	Messages *message.Service
	Logger   *log.Logger
}

// Channel is one session with the relay.
type Channel struct {
	keys     *identity.Service
	roster   *roster.Store
	messages *message.Service
	log      *log.Logger
	obs      domain.Observer

	conn    domain.Transport
	writeMu sync.Mutex

	mu       sync.Mutex
	state    domain.State
	lastErr  error
	changed  chan struct{}
	token    domain.Token
	self     domain.Username
	identity domain.KeyPair
	pending  *pendingAuth
	closing  bool

	done     chan struct{}
	doneOnce sync.Once
}

type pendingAuth struct {
	username domain.Username
	keys     domain.KeyPair
}

// Open dials the relay and starts the receive loop. If a session was
// persisted it is resumed with an authorize request and the Channel starts
// in Authenticating; otherwise it waits in AwaitingCredentials for Submit.
// obs may be nil.
func Open(
	ctx context.Context,
	dialer domain.Dialer,
	url string,
	deps Deps,
	obs domain.Observer,
) (*Channel, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Channel{
		keys:     deps.Keys,
		roster:   deps.Roster,
		messages: deps.Messages,
		log:      logger,
		obs:      obs,
		state:    domain.Disconnected,
		changed:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	notify := c.setStateLocked(domain.Connecting, nil)
	c.mu.Unlock()
	notify()

	conn, err := dialer.Dial(ctx, url)
	if err != nil {
		serr := &domain.SessionError{Kind: domain.TransportClosed, Err: err}
		c.mu.Lock()
		notify := c.setStateLocked(domain.Disconnected, serr)
		c.mu.Unlock()
		notify()
		return nil, serr
	}
	c.conn = conn

	var notes notifications
	c.mu.Lock()
	notes.add(c.resumeLocked())
	c.mu.Unlock()
	notes.run()

	go c.readLoop()
	return c, nil
}

// resumeLocked restores a persisted session, if any, and asks the relay to
// authorize its token.
func (c *Channel) resumeLocked() func() {
	id, token, ok, err := c.keys.Restore()
	if err != nil {
		c.log.Warn("discarding unreadable stored session", "err", err)
		if cerr := c.keys.Clear(); cerr != nil {
			c.log.Error("clear stored session", "err", cerr)
		}
	}
	if !ok {
		return c.setStateLocked(domain.AwaitingCredentials, nil)
	}

	c.token = token
	c.self = id.Username
	c.identity = id.Keys
	c.roster.SetSelf(domain.PeerID(id.Username))
	c.log.Info("resuming session", "user", id.Username, "token", tokenFingerprint(token))

	if err := c.write(wire.AuthorizeRequest(token)); err != nil {
		return c.failLocked(err)
	}
	return c.setStateLocked(domain.Authenticating, nil)
}

// Submit sends a login or registration with the credential digest and the
// public half of keys. It is only valid in AwaitingCredentials.
func (c *Channel) Submit(creds domain.Credentials, keys domain.KeyPair) error {
	if creds.Username == "" || creds.PasswordDigest == "" {
		return domain.ErrEmptyCredentials
	}
	if !keys.Valid() {
		return &domain.KeyManagerError{Kind: domain.GenerationFailed, Err: errors.New("incomplete key pair")}
	}
	pubPEM, err := crypto.MarshalPublicKeyPEM(keys.Public)
	if err != nil {
		return &domain.EncryptionError{Kind: domain.MalformedKey, Err: err}
	}

	c.mu.Lock()
	if c.state != domain.AwaitingCredentials {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("submit in state %s: %w", st, domain.ErrInvalidState)
	}
	req := wire.LoginRequest(creds.Username, creds.PasswordDigest, pubPEM)
	if creds.Register {
		req = wire.RegisterRequest(creds.Username, creds.PasswordDigest, pubPEM)
	}
	if err := c.write(req); err != nil {
		notify := c.failLocked(err)
		c.mu.Unlock()
		notify()
		return &domain.SessionError{Kind: domain.TransportClosed, Err: err}
	}
	c.pending = &pendingAuth{username: creds.Username, keys: keys}
	notify := c.setStateLocked(domain.Authenticating, nil)
	c.mu.Unlock()
	notify()

	c.log.Info("credentials submitted", "user", creds.Username, "register", creds.Register)
	return nil
}

// Send encrypts text for peer and hands it to the relay. It requires an
// authenticated session and a peer in the current roster. An encryption
// failure is recorded in the conversation and returned; the session carries
// on.
func (c *Channel) Send(peer domain.PeerID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.Authenticated {
		return domain.ErrNotAuthenticated
	}
	if _, ok := c.roster.Peer(peer); !ok {
		return domain.ErrUnknownPeer
	}
	ct, err := c.messages.Seal(c.self, peer, text)
	if err != nil {
		return err
	}
	if err := c.write(wire.MessageRequest(c.token, peer, ct)); err != nil {
		return &domain.SessionError{Kind: domain.TransportClosed, Err: err}
	}
	metrics.MessagesSent.Inc()
	return nil
}

// Logout sends a logout notice if a token is held, erases the persisted
// session and closes the transport.
func (c *Channel) Logout() error {
	c.mu.Lock()
	if c.state == domain.Disconnected {
		c.mu.Unlock()
		return c.keys.Clear()
	}
	if c.token != "" {
		if err := c.write(wire.LogoutRequest(c.token)); err != nil {
			c.log.Warn("logout notice not sent", "err", err)
		}
	}
	err := c.keys.Clear()
	c.resetLocked()
	c.closing = true
	notify := c.setStateLocked(domain.Disconnected, nil)
	c.mu.Unlock()

	_ = c.conn.Close()
	notify()
	c.log.Info("logged out")
	return err
}

// Close detaches from the relay and keeps the persisted session so a later
// Open can resume it.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == domain.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	notify := c.setStateLocked(domain.Disconnected, nil)
	c.mu.Unlock()

	err := c.conn.Close()
	notify()
	return err
}

// State returns the current protocol state.
func (c *Channel) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Self returns the authenticated username, if any.
func (c *Channel) Self() domain.Username {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Identity returns the key pair bound to the session, if any.
func (c *Channel) Identity() domain.KeyPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Done is closed when the Channel reaches Disconnected.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the Channel, or nil for a local close or
// logout.
func (c *Channel) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Settle blocks until the Channel is in a state that waits on the user
// (AwaitingCredentials, Authenticated or Disconnected) and returns it along
// with the error that caused the last transition.
func (c *Channel) Settle(ctx context.Context) (domain.State, error) {
	for {
		c.mu.Lock()
		st, err, ch := c.state, c.lastErr, c.changed
		c.mu.Unlock()

		switch st {
		case domain.AwaitingCredentials, domain.Authenticated, domain.Disconnected:
			return st, err
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (c *Channel) readLoop() {
	for {
		b, err := c.conn.ReadMessage()
		if err != nil {
			c.onTransportError(err)
			return
		}
		c.dispatch(b)
	}
}

func (c *Channel) onTransportError(err error) {
	c.mu.Lock()
	if c.closing || c.state == domain.Disconnected {
		c.mu.Unlock()
		return
	}
	c.log.Warn("relay connection lost", "err", err)
	notify := c.failLocked(err)
	c.mu.Unlock()
	notify()
}

// failLocked ends the session after a transport failure. Persisted state is
// cleared; the caller must start over.
func (c *Channel) failLocked(cause error) func() {
	if err := c.keys.Clear(); err != nil {
		c.log.Error("clear stored session", "err", err)
	}
	c.resetLocked()
	c.closing = true
	conn := c.conn
	notify := c.setStateLocked(domain.Disconnected, &domain.SessionError{Kind: domain.TransportClosed, Err: cause})
	return func() {
		if conn != nil {
			_ = conn.Close()
		}
		notify()
	}
}

func (c *Channel) resetLocked() {
	c.token = ""
	c.self = ""
	c.identity = domain.KeyPair{}
	c.pending = nil
	c.roster.Reset()
}

// setStateLocked records a transition and returns the observer notification
// to run once the lock is released.
func (c *Channel) setStateLocked(st domain.State, err error) func() {
	prev := c.state
	c.state = st
	c.lastErr = err
	close(c.changed)
	c.changed = make(chan struct{})
	if st == domain.Disconnected {
		c.doneOnce.Do(func() { close(c.done) })
	}
	if err != nil {
		c.log.Debug("state changed", "from", prev, "to", st, "err", err)
	} else {
		c.log.Debug("state changed", "from", prev, "to", st)
	}
	return func() { c.obs.OnStateChanged(st, err) }
}

// write encodes and sends req. Callers hold c.mu.
func (c *Channel) write(req wire.Request) error {
	b, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(b)
}

func tokenFingerprint(t domain.Token) string { return crypto.Fingerprint([]byte(t)) }

type nopObserver struct{}

func (nopObserver) OnStateChanged(domain.State, error)                     {}
func (nopObserver) OnRosterChanged([]domain.Peer)                          {}
func (nopObserver) OnMessage(domain.PeerID, domain.Entry, domain.Delivery) {}
func (nopObserver) OnBusy(bool)                                            {}
