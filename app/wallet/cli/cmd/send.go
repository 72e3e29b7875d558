package cmd

import (
	"fmt"
	"net/http"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func newSendCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign a transfer and submit it to the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			toStr, _ := cmd.Flags().GetString("to")
			amount, _ := cmd.Flags().GetUint64("amount")
			nonce, _ := cmd.Flags().GetUint64("nonce")

			to, err := database.ParseAddress(toStr)
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}

			privateKey, err := cfg.loadKey()
			if err != nil {
				return err
			}

			from := database.PublicKeyToAddress(privateKey.PublicKey)
			tx, err := database.NewTransferTx(nonce, from, to, amount)
			if err != nil {
				return err
			}

			if err := tx.Sign(privateKey); err != nil {
				return err
			}

			data, err := tx.Bytes()
			if err != nil {
				return err
			}

			body := struct {
				Tx string `json:"tx"`
			}{
				Tx: hexutil.Encode(data),
			}

			return send(cmd.OutOrStdout(), http.MethodPost, cfg.URL+"/v1/tx", body)
		},
	}

	cmd.Flags().StringP("to", "t", "", "Address to send to.")
	cmd.Flags().Uint64P("amount", "v", 0, "Amount to send.")
	cmd.Flags().Uint64P("nonce", "n", 0, "Nonce of the transfer.")
	cmd.MarkFlagRequired("to")

	return cmd
}
