package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"cipherlink/internal/app"
	"cipherlink/internal/metrics"
	"cipherlink/internal/relay"
)

func main() {
	if err := fang.Execute(context.Background(), newCommand(), fang.WithVersion(versioninfo.Short())); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		configFile string
		address    string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Websocket relay for cipherlink clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := relay.DefaultConfig()
			if configFile != "" {
				var err error
				if cfg, err = relay.LoadFile(configFile); err != nil {
					return err
				}
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.FixupAndValidate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "f", "", "TOML config file")
	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides Server.Address)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, cfg *relay.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.NewLogger(os.Stderr, "relay", cfg.Logging.Level)

	accounts, err := cfg.Accounts.OpenAccounts()
	if err != nil {
		return err
	}
	defer accounts.Close()

	if srv := metrics.Serve(cfg.Metrics.Address, logger.WithPrefix("metrics")); srv != nil {
		defer srv.Close()
	}

	hub := relay.New(accounts, relay.WithTTL(cfg.Server.TTL()), relay.WithLogger(logger))
	logger.Info("accounts", "backend", cfg.Accounts.Backend, "path", cfg.Accounts.Path)
	return hub.ListenAndServe(ctx, cfg.Server.Address)
}
