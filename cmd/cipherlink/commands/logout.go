package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and erase local identity material",
		RunE: func(cmd *cobra.Command, args []string) error {
			// A relay that cannot be reached must not keep the keys on disk.
			if err := resume(cmd.Context()); err != nil {
				wire.Logger.Debug("logging out offline", "err", err)
			}
			if err := wire.Controller.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
