package session

import (
	"errors"

	"cipherlink/internal/domain"
	"cipherlink/internal/metrics"
	"cipherlink/internal/protocol/wire"
)

// notifications collects observer callbacks to run after c.mu is released.
type notifications []func()

func (n *notifications) add(fn func()) {
	if fn != nil {
		*n = append(*n, fn)
	}
}

func (n notifications) run() {
	for _, fn := range n {
		fn()
	}
}

// dispatch handles a single inbound envelope. Decoding problems and events
// that do not fit the current state are logged and dropped.
func (c *Channel) dispatch(b []byte) {
	ev, err := wire.DecodeEvent(b)
	if err != nil {
		c.drop("malformed", "dropping malformed envelope", "err", err)
		return
	}

	var notes notifications
	c.mu.Lock()
	switch ev := ev.(type) {
	case wire.Login:
		notes.add(c.onLoginLocked(ev))
	case wire.Authorization:
		notes.add(c.onAuthorizationLocked(ev))
	case wire.UserlistChange:
		notes.add(c.onUserlistLocked(ev))
	case wire.Message:
		notes.add(c.onMessageLocked(ev))
	case wire.InvalidUser:
		notes.add(c.onInvalidUserLocked())
	case wire.Unknown:
		c.drop("unknown_event", "dropping unknown event", "event", ev.Event)
	}
	c.mu.Unlock()
	notes.run()
}

func (c *Channel) onLoginLocked(ev wire.Login) func() {
	if c.state != domain.Authenticating || c.pending == nil {
		c.drop("unexpected", "login response outside authentication", "state", c.state)
		return nil
	}
	pending := c.pending
	c.pending = nil

	if !ev.Valid {
		c.log.Warn("login rejected", "user", pending.username, "reason", ev.Error)
		return c.rejectLocked(&domain.SessionError{Kind: domain.InvalidCredentials, Reason: ev.Error})
	}

	username := ev.Username
	if username == "" {
		username = pending.username
	}
	return c.acceptLocked(ev.Token, username, pending.keys, ev.Users)
}

func (c *Channel) onAuthorizationLocked(ev wire.Authorization) func() {
	if c.state != domain.Authenticating || c.pending != nil {
		c.drop("unexpected", "authorization response outside resumption", "state", c.state)
		return nil
	}
	if !ev.Valid {
		c.log.Warn("stored session rejected by relay", "token", tokenFingerprint(c.token))
		return c.rejectLocked(&domain.SessionError{Kind: domain.TokenRevoked, Reason: "session expired"})
	}
	return c.acceptLocked(c.token, c.self, c.identity, ev.Users)
}

// acceptLocked completes authentication: the token and keys are persisted and
// the roster carried in the response, if any, is applied.
func (c *Channel) acceptLocked(
	token domain.Token,
	username domain.Username,
	keys domain.KeyPair,
	users []domain.Peer,
) func() {
	c.token = token
	c.self = username
	c.identity = keys
	c.roster.SetSelf(domain.PeerID(username))

	if err := c.keys.Persist(keys, token, username); err != nil {
		c.log.Error("session will not survive a restart", "err", err)
	}

	var notes notifications
	if users != nil {
		c.roster.ApplySnapshot(users)
		peers := c.roster.Peers()
		notes.add(func() { c.obs.OnRosterChanged(peers) })
	}
	c.log.Info("authenticated", "user", username, "token", tokenFingerprint(token))
	// The state change goes out first so observers see Authenticated before
	// the initial roster.
	notes = append(notifications{c.setStateLocked(domain.Authenticated, nil)}, notes...)
	return notes.run
}

// rejectLocked clears any partial identity and returns to credential entry.
// The transport stays open so the user can retry.
func (c *Channel) rejectLocked(err *domain.SessionError) func() {
	if cerr := c.keys.Clear(); cerr != nil {
		c.log.Error("clear stored session", "err", cerr)
	}
	c.resetLocked()
	return c.setStateLocked(domain.AwaitingCredentials, err)
}

func (c *Channel) onUserlistLocked(ev wire.UserlistChange) func() {
	if c.state != domain.Authenticated && c.state != domain.Authenticating {
		c.drop("unexpected", "roster outside a session", "state", c.state)
		return nil
	}
	c.roster.ApplySnapshot(ev.Users)
	peers := c.roster.Peers()
	c.log.Debug("roster updated", "peers", len(peers))
	return func() { c.obs.OnRosterChanged(peers) }
}

func (c *Channel) onMessageLocked(ev wire.Message) func() {
	if c.state != domain.Authenticated {
		c.drop("unexpected", "message outside a session", "state", c.state)
		return nil
	}
	entry, delivery, err := c.messages.Open(c.identity.Private, ev.Sender, ev.Message)
	if errors.Is(err, domain.ErrUnknownPeer) {
		c.drop("unknown_sender", "message from peer outside roster", "sender", ev.Sender)
		return nil
	}
	if err != nil {
		c.drop("undeliverable", "message not recorded", "sender", ev.Sender, "err", err)
		return nil
	}
	sender := ev.Sender
	return func() { c.obs.OnMessage(sender, entry, delivery) }
}

func (c *Channel) onInvalidUserLocked() func() {
	if c.state != domain.Authenticated && c.state != domain.Authenticating {
		c.drop("unexpected", "invalid user outside a session", "state", c.state)
		return nil
	}
	c.log.Warn("session revoked by relay", "token", tokenFingerprint(c.token))
	if err := c.keys.Clear(); err != nil {
		c.log.Error("clear stored session", "err", err)
	}
	c.resetLocked()
	c.closing = true
	conn := c.conn
	notify := c.setStateLocked(domain.Disconnected, &domain.SessionError{Kind: domain.TokenRevoked})
	return func() {
		_ = conn.Close()
		notify()
	}
}

func (c *Channel) drop(reason, msg string, keyvals ...any) {
	metrics.DroppedEnvelopes.WithLabelValues(reason).Inc()
	c.log.Warn(msg, keyvals...)
}
