package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"cipherlink/internal/transport"
)

// Paths served by Router.
const (
	PathWebsocket = "/ws"
	PathHealth    = "/healthz"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients are served from anywhere; authentication happens in
	// the protocol.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Router returns the relay's HTTP routes.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(PathWebsocket, h.serveWS).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, h.serveHealth).Methods(http.MethodGet)
	return r
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	h.log.Debug("connection opened", "remote", r.RemoteAddr)
	h.serve(transport.NewConn(ws))
}

func (h *Hub) serveHealth(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	online := len(h.online)
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Online int    `json:"online"`
	}{Status: "ok", Online: online})
}

// ListenAndServe serves the hub on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.Start()
	defer h.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	h.log.Info("relay listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
