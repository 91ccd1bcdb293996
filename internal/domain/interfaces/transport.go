package interfaces

import "context"

// Transport is a message-oriented socket to the relay. Each call to
// ReadMessage returns exactly one envelope. Writes must not be issued
// concurrently.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(b []byte) error
	Close() error
}

// Dialer opens a Transport to the relay at url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}
