// Package cmd contains the wallet commands.
package cmd

import (
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const keyExtension = ".ecdsa"

// config holds the settings shared by every command. Values come from the
// flags or from WALLET_ prefixed environment variables.
type config struct {
	Account     string `mapstructure:"account"`
	AccountPath string `mapstructure:"account-path"`
	URL         string `mapstructure:"url"`
}

// keyPath returns the path of the private key file for the account.
func (c config) keyPath() string {
	name := c.Account
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}
	return filepath.Join(c.AccountPath, name)
}

// loadKey reads the private key of the account.
func (c config) loadKey() (*ecdsa.PrivateKey, error) {
	return crypto.LoadECDSA(c.keyPath())
}

// NewRootCmd returns the wallet command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfg config
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "wallet",
		Short:        "Simple wallet for a minichain node",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cmd, &cfg)
		},
	}

	cmd.PersistentFlags().StringP("account", "a", "private", "Name of the private key file.")
	cmd.PersistentFlags().StringP("account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	cmd.PersistentFlags().StringP("url", "u", "http://localhost:8080", "Url of the node.")

	cmd.AddCommand(
		newGenerateCmd(&cfg),
		newAddressCmd(&cfg),
		newSendCmd(&cfg),
		newBalanceCmd(&cfg),
		newBlockCmd(&cfg),
	)

	return cmd
}

// Execute runs the wallet command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig binds the command flags and the environment into viper and
// reads the result into the config.
func loadConfig(v *viper.Viper, cmd *cobra.Command, cfg *config) error {
	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Register flags with viper. Include flags from this command and all
	// other persistent flags from the parent.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}
