package app

import (
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"cipherlink/internal/client"
	"cipherlink/internal/domain"
	"cipherlink/internal/metrics"
	"cipherlink/internal/services/identity"
	"cipherlink/internal/store"
	"cipherlink/internal/transport"
)

// Wire bundles the stores, services and controller for the CLI.
type Wire struct {
	Config     *Config
	Logger     *log.Logger
	Store      domain.SessionStore
	Keys       *identity.Service
	Dialer     *transport.Dialer
	Controller *client.Controller

	metrics *http.Server
}

// NewWire constructs the dependency graph from cfg. Logs go to logOut.
func NewWire(cfg *Config, logOut io.Writer) (*Wire, error) {
	logger := NewLogger(logOut, "cipherlink", cfg.Logging.Level)

	st, err := OpenSessionStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	keys := identity.New(st, identity.WithLogger(logger.WithPrefix("identity")))
	dialer := transport.NewDialer(cfg.Relay.Timeout())
	ctrl := client.New(keys, dialer, cfg.Relay.URL, logger)

	return &Wire{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Keys:       keys,
		Dialer:     dialer,
		Controller: ctrl,
		metrics:    metrics.Serve(cfg.Metrics.Address, logger.WithPrefix("metrics")),
	}, nil
}

// OpenSessionStore opens the backend selected by s.
func OpenSessionStore(s *Store) (domain.SessionStore, error) {
	switch s.Backend {
	case BackendFile:
		return store.NewFileStore(s.Path)
	case BackendBolt:
		return store.OpenBolt(s.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}

// Close detaches the controller and releases the store.
func (w *Wire) Close() error {
	err := w.Controller.Close()
	if w.metrics != nil {
		_ = w.metrics.Close()
	}
	if cerr := w.Store.Close(); err == nil {
		err = cerr
	}
	return err
}
