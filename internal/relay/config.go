package relay

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"cipherlink/internal/domain"
	"cipherlink/internal/store"
)

const (
	defaultAddress    = "127.0.0.1:8080"
	defaultSessionTTL = 600
	defaultLogLevel   = "info"
)

// Server is the listener configuration.
type Server struct {
	// Address is the host:port the relay listens on.
	Address string

	// SessionTTL is the number of seconds a session may stay idle before its
	// token is revoked.
	SessionTTL int
}

func (s *Server) fixup() {
	if s.Address == "" {
		s.Address = defaultAddress
	}
	if s.SessionTTL == 0 {
		s.SessionTTL = defaultSessionTTL
	}
}

// TTL returns SessionTTL as a duration.
func (s *Server) TTL() time.Duration { return time.Duration(s.SessionTTL) * time.Second }

// Accounts selects where registered accounts live.
type Accounts struct {
	// Backend is one of "memory", "file" or "bolt".
	Backend string

	// Path is the directory (file) or database path (bolt).
	Path string
}

func (a *Accounts) validate() error {
	switch a.Backend {
	case "":
		a.Backend = "memory"
	case "memory":
	case "file", "bolt":
		if a.Path == "" {
			return fmt.Errorf("config: Accounts: Backend %q needs a Path", a.Backend)
		}
	default:
		return fmt.Errorf("config: Accounts: Backend %q is invalid", a.Backend)
	}
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

// Metrics configures the prometheus listener.
type Metrics struct {
	// Address is the host:port for /metrics. Empty disables it.
	Address string
}

// Config is the relay configuration.
type Config struct {
	Server   *Server
	Accounts *Accounts
	Logging  *Logging
	Metrics  *Metrics
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	c := new(Config)
	if err := c.FixupAndValidate(); err != nil {
		panic(err)
	}
	return c
}

// FixupAndValidate applies defaults and validates every section.
func (c *Config) FixupAndValidate() error {
	if c.Server == nil {
		c.Server = &Server{}
	}
	c.Server.fixup()
	if c.Server.SessionTTL < 0 {
		return errors.New("config: Server: SessionTTL must not be negative")
	}
	if c.Accounts == nil {
		c.Accounts = &Accounts{}
	}
	if err := c.Accounts.validate(); err != nil {
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

// Load parses and validates b as a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the file at f.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// OpenAccounts opens the account store the section selects.
func (a *Accounts) OpenAccounts() (domain.AccountStore, error) {
	switch a.Backend {
	case "file":
		return store.NewAccountFileStore(a.Path)
	case "bolt":
		return store.OpenBoltAccounts(a.Path)
	default:
		return store.NewMemoryAccountStore(), nil
	}
}
