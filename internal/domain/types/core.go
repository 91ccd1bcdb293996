package types

// Username is the name a user registers and logs in with.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// PeerID is the relay-assigned identifier of a roster member. It is distinct
// from the display name even though the reference relay uses the same value.
type PeerID string

// String returns the string form of the peer identifier.
func (id PeerID) String() string { return string(id) }

// Token is the opaque session token issued by the relay.
type Token string

// String returns the string form of the token.
func (t Token) String() string { return string(t) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
