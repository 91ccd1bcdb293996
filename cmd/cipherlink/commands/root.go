package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"cipherlink/internal/app"
	"cipherlink/internal/domain"
)

var (
	home       string
	configPath string
	relayURL   string
	logLevel   string

	wire *app.Wire
)

// errNoSession is returned by commands that need a stored login.
var errNoSession = errors.New("no active session; run `cipherlink login` or `cipherlink register` first")

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, newRoot(), fang.WithVersion(versioninfo.Short()))
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "cipherlink",
		Short:         "End-to-end encrypted chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			wire, err = app.NewWire(cfg, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			err := wire.Close()
			wire = nil
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state directory (default ~/.cipherlink)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.toml)")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay websocket URL, e.g. ws://127.0.0.1:8080/ws")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		registerCmd(),
		loginCmd(),
		chatCmd(),
		sendCmd(),
		peersCmd(),
		logoutCmd(),
		fingerprintCmd(),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*app.Config, error) {
	h := home
	if h == "" {
		h = app.DefaultHome()
	}
	h = app.ExpandHome(h)
	path := configPath
	if path == "" {
		path = filepath.Join(h, app.ConfigFilename)
	}
	cfg, err := app.LoadFile(path, h)
	if err != nil {
		return nil, err
	}
	if relayURL != "" {
		cfg.Relay.URL = relayURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	// Re-validate so flag values get the same checks as file values.
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resume connects and requires the stored session to be accepted.
func resume(ctx context.Context) error {
	ctrl := wire.Controller
	if err := ctrl.Connect(ctx); err != nil {
		return err
	}
	st, err := ctrl.Settle(ctx)
	switch {
	case st == domain.Authenticated:
		return nil
	case err != nil:
		return err
	default:
		return errNoSession
	}
}
