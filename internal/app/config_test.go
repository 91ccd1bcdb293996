package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(nil, home)
	require.NoError(t, err)

	require.Equal(t, home, cfg.Home)
	require.Equal(t, defaultRelayURL, cfg.Relay.URL)
	require.Equal(t, 10*time.Second, cfg.Relay.Timeout())
	require.Equal(t, BackendBolt, cfg.Store.Backend)
	require.Equal(t, filepath.Join(home, "session.db"), cfg.Store.Path)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Empty(t, cfg.Metrics.Address)
}

func TestLoad_FileBackendDefaultsToHome(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load([]byte("[Store]\nBackend = \"file\"\n"), home)
	require.NoError(t, err)
	require.Equal(t, home, cfg.Store.Path)
}

func TestLoadFile(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(`
[Relay]
URL = "wss://relay.example.org/ws"
HandshakeTimeout = 2500

[Logging]
Level = "Warn"

[Metrics]
Address = "127.0.0.1:9200"
`), 0o600))

	cfg, err := LoadFile(path, home)
	require.NoError(t, err)
	require.Equal(t, "wss://relay.example.org/ws", cfg.Relay.URL)
	require.Equal(t, 2500*time.Millisecond, cfg.Relay.Timeout())
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "127.0.0.1:9200", cfg.Metrics.Address)
}

func TestLoadFile_Missing(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadFile(filepath.Join(home, "absent.toml"), home)
	require.NoError(t, err)
	require.Equal(t, defaultRelayURL, cfg.Relay.URL)
}

func TestLoad_Invalid(t *testing.T) {
	for _, body := range []string{
		"[Relay]\nURL = \"http://relay\"\n",
		"[Relay]\nHandshakeTimeout = -5\n",
		"[Store]\nBackend = \"sqlite\"\n",
		"[Logging]\nLevel = \"chatty\"\n",
	} {
		_, err := Load([]byte(body), t.TempDir())
		require.Error(t, err, body)
	}
}

func TestNewWire_OpensConfiguredStore(t *testing.T) {
	for _, backend := range []string{BackendBolt, BackendFile} {
		t.Run(backend, func(t *testing.T) {
			cfg, err := Load([]byte("[Store]\nBackend = \""+backend+"\"\n"), t.TempDir())
			require.NoError(t, err)

			w, err := NewWire(cfg, os.Stderr)
			require.NoError(t, err)
			_, ok, err := w.Store.LoadSession()
			require.NoError(t, err)
			require.False(t, ok)
			require.NoError(t, w.Close())
		})
	}
}
