package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List online peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resume(cmd.Context()); err != nil {
				return err
			}
			peers := wire.Controller.Peers()
			out := cmd.OutOrStdout()
			if len(peers) == 0 {
				fmt.Fprintln(out, "No other users online")
				return nil
			}
			for _, p := range peers {
				fmt.Fprintln(out, p.Name)
			}
			return nil
		},
	}
}
