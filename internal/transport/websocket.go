package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cipherlink/internal/domain"
)

// DefaultHandshakeTimeout bounds the websocket opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// ErrClosed is returned by reads and writes on a Conn that was closed locally.
var ErrClosed = errors.New("transport closed")

// Dialer opens websocket connections to the relay.
type Dialer struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

// NewDialer returns a Dialer with the given handshake timeout. A zero timeout
// selects DefaultHandshakeTimeout.
func NewDialer(handshakeTimeout time.Duration) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &Dialer{HandshakeTimeout: handshakeTimeout}
}

// Dial connects to url (ws:// or wss://).
func (d *Dialer) Dial(ctx context.Context, url string) (domain.Transport, error) {
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	ws, resp, err := wd.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	return NewConn(ws), nil
}

// Conn adapts a websocket connection to domain.Transport. Writes are
// serialised internally so a Conn may be shared between a reader goroutine
// and writers.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closed: make(chan struct{})}
}

// ReadMessage blocks until the next text or binary frame arrives.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, b, err := c.ws.ReadMessage()
	if err != nil {
		select {
		case <-c.closed:
			return nil, ErrClosed
		default:
		}
		return nil, err
	}
	return b, nil
}

// WriteMessage sends b as a single text frame.
func (c *Conn) WriteMessage(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Close sends a normal closure frame and releases the connection. It is safe
// to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		close(c.closed)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// IsClosed reports whether err signals an orderly end of the connection.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

var (
	_ domain.Dialer    = (*Dialer)(nil)
	_ domain.Transport = (*Conn)(nil)
)
