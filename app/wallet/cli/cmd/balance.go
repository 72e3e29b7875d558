package cmd

import (
	"fmt"
	"net/http"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

func newBalanceCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the balance of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := cfg.loadKey()
			if err != nil {
				return err
			}

			addr := database.PublicKeyToAddress(privateKey.PublicKey)
			url := fmt.Sprintf("%s/v1/accounts/%s", cfg.URL, addr)

			return send(cmd.OutOrStdout(), http.MethodGet, url, nil)
		},
	}
}
