package types

import "crypto/rsa"

// KeyPair is the long-term RSA identity key pair.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// Valid reports whether both halves are present.
func (k KeyPair) Valid() bool { return k.Public != nil && k.Private != nil }

// Identity is the local user of one authenticated session.
type Identity struct {
	Username       Username
	PasswordDigest string
	Keys           KeyPair
}

// Credentials are submitted to the relay by a login or registration.
type Credentials struct {
	Username       Username
	PasswordDigest string
	Register       bool
}

// PersistedSession is the client-local record that lets a session resume
// after a restart. Keys are PEM encoded.
type PersistedSession struct {
	Token  Token    `json:"token"`
	Name   Username `json:"name"`
	PubKey string   `json:"pubKey"`
	PrvKey string   `json:"prvKey"`
}
