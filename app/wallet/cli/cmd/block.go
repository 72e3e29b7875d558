package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newBlockCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Print a block by height or hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}

			switch {
			case cmd.Flags().Changed("height") && !cmd.Flags().Changed("hash"):
				height, _ := cmd.Flags().GetUint64("height")
				q.Set("height", fmt.Sprintf("%d", height))

			case cmd.Flags().Changed("hash") && !cmd.Flags().Changed("height"):
				hash, _ := cmd.Flags().GetString("hash")
				q.Set("hash", hash)

			default:
				return errors.New("must request with height or hash")
			}

			return send(cmd.OutOrStdout(), http.MethodGet, cfg.URL+"/v1/blocks?"+q.Encode(), nil)
		},
	}

	cmd.Flags().Uint64("height", 0, "Height of the block.")
	cmd.Flags().String("hash", "", "Hash of the block.")

	return cmd
}
