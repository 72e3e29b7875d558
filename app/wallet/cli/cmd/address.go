package cmd

import (
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

func newAddressCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := cfg.loadKey()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), database.PublicKeyToAddress(privateKey.PublicKey))
			return nil
		},
	}
}
