package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/services/identity"
	"cipherlink/internal/services/message"
	"cipherlink/internal/services/roster"
	"cipherlink/internal/services/session"
)

// Controller is the entry point for login, registration, logout, peer
// selection and sending.
type Controller struct {
	keys   *identity.Service
	dialer domain.Dialer
	url    string
	log    *log.Logger

	roster   *roster.Store
	messages *message.Service
	obs      fanout

	mu     sync.Mutex
	ch     *session.Channel
	closed bool
}

// New returns a Controller that dials url with dialer and keeps keys through
// keys. A nil logger discards output.
func New(keys *identity.Service, dialer domain.Dialer, url string, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r := roster.New()
	return &Controller{
		keys:     keys,
		dialer:   dialer,
		url:      url,
		log:      logger,
		roster:   r,
		messages: message.New(r, logger.WithPrefix("message")),
	}
}

// Observe registers o for session notifications. Register observers before
// Connect.
func (c *Controller) Observe(o domain.Observer) { c.obs.add(o) }

// OnIncoming registers fn to be called for every received message.
func (c *Controller) OnIncoming(fn func(domain.PeerID, domain.Entry, domain.Delivery)) {
	c.obs.add(ObserverFuncs{Message: fn})
}

// Connect opens the session channel. A persisted session is resumed; use
// Settle to learn whether credentials are needed.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connect after close: %w", domain.ErrInvalidState)
	}
	if c.ch != nil && c.ch.State() != domain.Disconnected {
		return fmt.Errorf("connect: %w", domain.ErrInvalidState)
	}
	c.roster.Reset()
	ch, err := session.Open(ctx, c.dialer, c.url, session.Deps{
		Keys:     c.keys,
		Roster:   c.roster,
		Messages: c.messages,
		Logger:   c.log.WithPrefix("session"),
	}, &c.obs)
	if err != nil {
		return err
	}
	c.ch = ch
	return nil
}

// Settle waits until the session needs the user again and reports its
// state along with the error of the last transition.
func (c *Controller) Settle(ctx context.Context) (domain.State, error) {
	ch := c.channel()
	if ch == nil {
		return domain.Disconnected, nil
	}
	return ch.Settle(ctx)
}

// Login authenticates an existing account.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, username, password, false)
}

// Register creates an account. password and confirm must match once
// surrounding whitespace is trimmed, as the relay only sees their digest.
func (c *Controller) Register(ctx context.Context, username, password, confirm string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(confirm) == "" {
		return domain.ErrEmptyCredentials
	}
	if crypto.HashCredential(password) != crypto.HashCredential(confirm) {
		return domain.ErrPasswordMismatch
	}
	return c.authenticate(ctx, username, password, true)
}

// authenticate derives keys off the calling goroutine, submits the
// credentials and waits for the relay's answer.
func (c *Controller) authenticate(ctx context.Context, username, password string, register bool) error {
	name := strings.TrimSpace(username)
	if name == "" || strings.TrimSpace(password) == "" {
		return domain.ErrEmptyCredentials
	}
	ch := c.channel()
	if ch == nil {
		return domain.ErrNotAuthenticated
	}
	if st := ch.State(); st != domain.AwaitingCredentials {
		return fmt.Errorf("%s in state %s: %w", verb(register), st, domain.ErrInvalidState)
	}

	creds := domain.Credentials{
		Username:       domain.Username(name),
		PasswordDigest: crypto.HashCredential(password),
		Register:       register,
	}

	keys, err := c.generate(ctx, creds)
	if err != nil {
		return err
	}
	if err := ch.Submit(creds, keys); err != nil {
		return err
	}

	st, err := ch.Settle(ctx)
	if err != nil {
		return err
	}
	if st != domain.Authenticated {
		return fmt.Errorf("%s: session is %s", verb(register), st)
	}
	return nil
}

// generate runs key derivation in the background. Observers see busy for
// exactly the duration of the work, whatever its outcome.
func (c *Controller) generate(ctx context.Context, creds domain.Credentials) (domain.KeyPair, error) {
	c.obs.OnBusy(true)
	defer c.obs.OnBusy(false)

	select {
	case res := <-c.keys.GenerateInBackground(ctx, creds.Username, creds.PasswordDigest):
		return res.Keys, res.Err
	case <-ctx.Done():
		return domain.KeyPair{}, ctx.Err()
	}
}

// Logout ends the session and erases the persisted identity.
func (c *Controller) Logout() error {
	ch := c.channel()
	if ch == nil {
		return c.keys.Clear()
	}
	return ch.Logout()
}

// SelectPeer focuses peer, resolved by id or display name, and returns its
// conversation so far.
func (c *Controller) SelectPeer(peer string) (domain.Peer, []domain.Entry, error) {
	p, ok := c.roster.Lookup(peer)
	if !ok {
		return domain.Peer{}, nil, domain.ErrUnknownPeer
	}
	if err := c.roster.Focus(p.ID); err != nil {
		return domain.Peer{}, nil, err
	}
	return p, c.roster.History(p.ID), nil
}

// Focused returns the peer whose conversation is open.
func (c *Controller) Focused() (domain.Peer, bool) {
	id, ok := c.roster.Focused()
	if !ok {
		return domain.Peer{}, false
	}
	return c.roster.Peer(id)
}

// Send encrypts text for the focused peer.
func (c *Controller) Send(text string) error {
	id, ok := c.roster.Focused()
	if !ok {
		return domain.ErrNoFocus
	}
	return c.SendTo(id.String(), text)
}

// SendTo encrypts text for peer, resolved by id or display name.
func (c *Controller) SendTo(peer, text string) error {
	ch := c.channel()
	if ch == nil {
		return domain.ErrNotAuthenticated
	}
	p, ok := c.roster.Lookup(peer)
	if !ok {
		if ch.State() != domain.Authenticated {
			return domain.ErrNotAuthenticated
		}
		return domain.ErrUnknownPeer
	}
	return ch.Send(p.ID, text)
}

// Peers lists the roster.
func (c *Controller) Peers() []domain.Peer { return c.roster.Peers() }

// Unread returns a snapshot of the unread counters.
func (c *Controller) Unread() map[domain.PeerID]int { return c.roster.Unread() }

// History returns a copy of the conversation with peer.
func (c *Controller) History(peer domain.PeerID) []domain.Entry { return c.roster.History(peer) }

// State returns the session state.
func (c *Controller) State() domain.State {
	if ch := c.channel(); ch != nil {
		return ch.State()
	}
	return domain.Disconnected
}

// Self returns the authenticated username.
func (c *Controller) Self() domain.Username {
	if ch := c.channel(); ch != nil {
		return ch.Self()
	}
	return ""
}

// Fingerprint returns the fingerprint of the session's public key.
func (c *Controller) Fingerprint() (domain.Fingerprint, error) {
	ch := c.channel()
	if ch == nil {
		return "", domain.ErrNotAuthenticated
	}
	keys := ch.Identity()
	if !keys.Valid() {
		return "", domain.ErrNotAuthenticated
	}
	fp, err := crypto.FingerprintKey(keys.Public)
	return domain.Fingerprint(fp), err
}

// Done is closed when the current session ends. It is nil before Connect.
func (c *Controller) Done() <-chan struct{} {
	if ch := c.channel(); ch != nil {
		return ch.Done()
	}
	return nil
}

// Err returns the error that ended the session, if any.
func (c *Controller) Err() error {
	if ch := c.channel(); ch != nil {
		return ch.Err()
	}
	return nil
}

// Close stops key generation and detaches from the relay. The persisted
// session is kept. A closed Controller cannot connect again.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.keys.Halt()
	if ch := c.channel(); ch != nil {
		return ch.Close()
	}
	return nil
}

func (c *Controller) channel() *session.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

func verb(register bool) string {
	if register {
		return "register"
	}
	return "login"
}
