package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the fingerprint of the stored public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, ok, err := wire.Keys.Restore()
			if err != nil {
				return err
			}
			if !ok {
				return errNoSession
			}
			fp, err := crypto.FingerprintKey(id.Keys.Public)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id.Username, fp)
			return nil
		},
	}
}
