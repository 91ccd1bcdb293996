package domain

import (
	interfaces "cipherlink/internal/domain/interfaces"
	types "cipherlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username         = types.Username
	PeerID           = types.PeerID
	Token            = types.Token
	Fingerprint      = types.Fingerprint
	KeyPair          = types.KeyPair
	Identity         = types.Identity
	Credentials      = types.Credentials
	PersistedSession = types.PersistedSession
	Account          = types.Account
	Peer             = types.Peer
	Entry            = types.Entry
	Delivery         = types.Delivery
	State            = types.State
)

// Re-exported constants.
const (
	Delivered = types.Delivered
	Queued    = types.Queued

	Disconnected        = types.Disconnected
	Connecting          = types.Connecting
	AwaitingCredentials = types.AwaitingCredentials
	Authenticating      = types.Authenticating
	Authenticated       = types.Authenticated
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	SessionStore = interfaces.SessionStore
	AccountStore = interfaces.AccountStore
	Transport    = interfaces.Transport
	Dialer       = interfaces.Dialer
	Observer     = interfaces.Observer
)
