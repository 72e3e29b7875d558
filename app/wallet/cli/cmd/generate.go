package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

func newGenerateCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a new private key for the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.keyPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key file %s already exists", path)
			}

			privateKey, err := signature.GenerateKey()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.AccountPath, 0755); err != nil {
				return err
			}

			if err := crypto.SaveECDSA(path, privateKey); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), database.PublicKeyToAddress(privateKey.PublicKey))
			return nil
		},
	}
}
