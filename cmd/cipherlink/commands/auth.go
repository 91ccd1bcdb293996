package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

func registerCmd() *cobra.Command {
	var password, confirm string
	cmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account on the relay and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if password == "" {
				var err error
				if password, err = p.askSecret("Password: "); err != nil {
					return err
				}
				if confirm, err = p.askSecret("Confirm password: "); err != nil {
					return err
				}
			} else if confirm == "" {
				confirm = password
			}
			return authenticate(cmd, func() error {
				return wire.Controller.Register(cmd.Context(), args[0], password, confirm)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted if empty)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "password confirmation (defaults to --password)")
	return cmd
}

func loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				if password, err = p.askSecret("Password: "); err != nil {
					return err
				}
			}
			return authenticate(cmd, func() error {
				return wire.Controller.Login(cmd.Context(), args[0], password)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted if empty)")
	return cmd
}

// authenticate connects, refuses to replace a resumed session and runs submit.
func authenticate(cmd *cobra.Command, submit func() error) error {
	ctx := cmd.Context()
	ctrl := wire.Controller
	if err := ctrl.Connect(ctx); err != nil {
		return err
	}
	st, err := ctrl.Settle(ctx)
	if err != nil && st != domain.AwaitingCredentials {
		return err
	}
	if st == domain.Authenticated {
		return fmt.Errorf("already logged in as %s; run `cipherlink logout` first", ctrl.Self())
	}

	if err := submit(); err != nil {
		return err
	}
	fp, err := ctrl.Fingerprint()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\nFingerprint: %s\n", ctrl.Self(), fp)
	return nil
}
