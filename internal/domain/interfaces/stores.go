package interfaces

import domaintypes "cipherlink/internal/domain/types"

// SessionStore is the client-local key-value store holding the persisted
// session (token, name and identity keys) under a fixed namespace.
type SessionStore interface {
	// SaveSession overwrites any prior record.
	SaveSession(session domaintypes.PersistedSession) error
	LoadSession() (domaintypes.PersistedSession, bool, error)
	ClearSession() error
	Close() error
}

// AccountStore holds the relay's registered accounts. Names are matched
// case-insensitively.
type AccountStore interface {
	SaveAccount(account domaintypes.Account) error
	LoadAccount(name domaintypes.Username) (domaintypes.Account, bool, error)
	Close() error
}
