package types

// Peer is a roster member as published by the relay.
type Peer struct {
	ID        PeerID `json:"id"`
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

// Entry is one line of a conversation log.
type Entry struct {
	Sender    string `json:"sender"`
	Plaintext string `json:"message"`
	Self      bool   `json:"self,omitempty"`
	Error     bool   `json:"error,omitempty"`
}

// Delivery tells the caller whether an incoming entry should be rendered now.
type Delivery int

const (
	// Delivered entries belong to the focused peer.
	Delivered Delivery = iota + 1
	// Queued entries were stored and counted as unread.
	Queued
)

// String returns the delivery name.
func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}
