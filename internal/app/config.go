package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultRelayURL         = "ws://127.0.0.1:8080/ws"
	defaultHandshakeTimeout = 10000
	defaultLogLevel         = "info"

	// BackendBolt keeps the session in a bbolt database.
	BackendBolt = "bolt"
	// BackendFile keeps the session in a JSON file.
	BackendFile = "file"

	// ConfigFilename is looked up in Home when no config path is given.
	ConfigFilename = "config.toml"
	boltFilename   = "session.db"
)

// Relay is the relay connection configuration.
type Relay struct {
	// URL is the relay websocket endpoint (ws:// or wss://).
	URL string

	// HandshakeTimeout is the number of milliseconds the websocket opening
	// handshake may take.
	HandshakeTimeout int
}

// Timeout returns HandshakeTimeout as a duration.
func (r *Relay) Timeout() time.Duration { return time.Duration(r.HandshakeTimeout) * time.Millisecond }

func (r *Relay) validate() error {
	if r.URL == "" {
		r.URL = defaultRelayURL
	}
	if !strings.HasPrefix(r.URL, "ws://") && !strings.HasPrefix(r.URL, "wss://") {
		return fmt.Errorf("config: Relay: URL %q must use ws:// or wss://", r.URL)
	}
	if r.HandshakeTimeout == 0 {
		r.HandshakeTimeout = defaultHandshakeTimeout
	}
	if r.HandshakeTimeout < 0 {
		return fmt.Errorf("config: Relay: HandshakeTimeout must not be negative")
	}
	return nil
}

// Store selects where the persisted session lives.
type Store struct {
	// Backend is "bolt" (default) or "file".
	Backend string

	// Path is the database file (bolt) or directory (file). Defaults are
	// under Home.
	Path string
}

func (s *Store) validate(home string) error {
	switch s.Backend {
	case "":
		s.Backend = BackendBolt
	case BackendBolt, BackendFile:
	default:
		return fmt.Errorf("config: Store: Backend %q is invalid", s.Backend)
	}
	if s.Path == "" {
		if s.Backend == BackendBolt {
			s.Path = filepath.Join(home, boltFilename)
		} else {
			s.Path = home
		}
	}
	s.Path = ExpandHome(s.Path)
	return nil
}

// Logging is the logging configuration.
type Logging struct {
	// Level is one of debug, info, warn or error.
	Level string
}

func (l *Logging) validate() error {
	lvl := strings.ToLower(l.Level)
	switch lvl {
	case "debug", "info", "warn", "error":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", l.Level)
	}
	l.Level = lvl
	return nil
}

// Metrics configures the optional prometheus listener.
type Metrics struct {
	// Address is the host:port for /metrics. Empty disables it.
	Address string
}

// Config is the client configuration.
type Config struct {
	// Home holds client state. It is not read from the file.
	Home string `toml:"-"`

	Relay   *Relay
	Store   *Store
	Logging *Logging
	Metrics *Metrics
}

// FixupAndValidate applies defaults to missing sections and validates them.
func (c *Config) FixupAndValidate() error {
	if c.Home == "" {
		c.Home = DefaultHome()
	}
	c.Home = ExpandHome(c.Home)
	if c.Relay == nil {
		c.Relay = &Relay{}
	}
	if err := c.Relay.validate(); err != nil {
		return err
	}
	if c.Store == nil {
		c.Store = &Store{}
	}
	if err := c.Store.validate(c.Home); err != nil {
		return err
	}
	if c.Logging == nil {
		c.Logging = &Logging{}
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if c.Metrics == nil {
		c.Metrics = &Metrics{}
	}
	return nil
}

// Load parses b as a config body for home and validates it.
func Load(b []byte, home string) (*Config, error) {
	cfg := &Config{Home: home}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the config at f. A missing file yields the defaults.
func LoadFile(f, home string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return Load(b, home)
}
