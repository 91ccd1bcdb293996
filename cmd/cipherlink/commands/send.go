package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [peer] [message...]",
		Short: "Encrypt and send a single message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resume(cmd.Context()); err != nil {
				return err
			}
			peer, text := args[0], strings.Join(args[1:], " ")
			if err := wire.Controller.SendTo(peer, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", peer)
			return nil
		},
	}
	return cmd
}
